package analyzer

import (
	"sort"

	"github.com/Patrick2402/image-version-analyzer/pkg/rules"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// Candidates turns raw upstream tags into the comparison pool: not a
// signature, passing the rule's include/exclude patterns, version-like, not
// a prerelease, not skipped and allowed by the rule's constraint. Rejected
// tags are returned raw. Pool order follows tags.
func Candidates(tags []string, rule *rules.Rule) (pool []version.Version, rejected []string) {
	kept := make(map[string]bool, len(tags))
	for _, t := range rule.Filter(tags) {
		kept[t] = true
	}

	for _, t := range tags {
		if !kept[t] || !version.IsVersionTag(t) {
			rejected = append(rejected, t)
			continue
		}
		v, err := version.Parse(t)
		if err != nil || v.IsPrerelease() || rule.Skipped(v) || !rule.Allows(v) {
			rejected = append(rejected, t)
			continue
		}
		pool = append(pool, v)
	}
	return pool, rejected
}

// SameVariant keeps the candidates sharing current's suffix ("alpine",
// "slim-bookworm", or none). When nothing shares it the pool is returned
// unchanged.
func SameVariant(current version.Version, pool []version.Version) []version.Version {
	var out []version.Version
	for _, v := range pool {
		if v.Suffix == current.Suffix && v.Prefix == current.Prefix {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		for _, v := range pool {
			if v.Suffix == current.Suffix {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

// SimilarTags lists the candidates sharing current's variant, newest first.
func SimilarTags(current version.Version, pool []version.Version) []string {
	same := append([]version.Version(nil), SameVariant(current, pool)...)
	sort.SliceStable(same, func(i, j int) bool {
		return same[i].Compare(same[j]) > 0
	})

	out := make([]string, len(same))
	for i, v := range same {
		out[i] = v.Tag()
	}
	return out
}

// Recommend picks the version current should move to.
//
// With an LTS rule at major level the recommendation lands on the LTS
// ladder; otherwise it is the highest candidate. The pool is expected to be
// already filtered by Candidates.
func Recommend(current version.Version, pool []version.Version, level version.Level, rule *rules.Rule) (version.Version, bool) {
	if len(pool) == 0 {
		return version.Version{}, false
	}
	candidates := SameVariant(current, pool)

	if level == version.LevelMajor && rule.HasLTS() {
		if rung, ok := LadderTarget(current.Major(), rule); ok {
			return onRung(rung, candidates, pool), true
		}
		// Already past every LTS release.
		return current, true
	}

	return version.Max(candidates)
}

// LadderTarget returns the LTS major current should move to. An LTS
// current with step_by advances that many rungs along the sorted ladder,
// clamped to the top rung; anything else moves to the smallest rung at or
// above current.
func LadderTarget(currentMajor int, rule *rules.Rule) (int, bool) {
	ladder := rule.Ladder()
	if len(ladder) == 0 {
		return 0, false
	}

	if rule.StepBy != nil {
		for i, rung := range ladder {
			if rung == currentMajor {
				next := i + *rule.StepBy
				if next >= len(ladder) {
					next = len(ladder) - 1
				}
				return ladder[next], true
			}
		}
	}

	i := sort.SearchInts(ladder, currentMajor)
	if i == len(ladder) {
		return 0, false
	}
	return ladder[i], true
}

// onRung returns the highest candidate on the given major, preferring the
// variant-filtered set. A rung nobody publishes yet becomes a bare version.
func onRung(rung int, preferred, pool []version.Version) version.Version {
	for _, set := range [][]version.Version{preferred, pool} {
		var matching []version.Version
		for _, v := range set {
			if v.Major() == rung {
				matching = append(matching, v)
			}
		}
		if best, ok := version.Max(matching); ok {
			return best
		}
	}
	return version.FromComponents(rung)
}
