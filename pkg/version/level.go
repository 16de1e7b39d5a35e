package version

import (
	"fmt"
	"strings"
)

// Level is the component position used as the unit of comparison.
type Level int

const (
	LevelMajor Level = 1
	LevelMinor Level = 2
	LevelPatch Level = 3
)

// DefaultLevel is used when nothing else decides.
const DefaultLevel = LevelMinor

// Valid reports whether l is one of the three known levels.
func (l Level) Valid() bool {
	return l >= LevelMajor && l <= LevelPatch
}

// String returns "major", "minor" or "patch".
func (l Level) String() string {
	switch l {
	case LevelMajor:
		return "major"
	case LevelMinor:
		return "minor"
	case LevelPatch:
		return "patch"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps free-form tokens to a Level.
// Supported aliases (case-insensitive):
//
//	major: "1", "major", "maj", "x"
//	minor: "2", "minor", "min", "xy"
//	patch: "3", "patch", "pth", "xyz"
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "major", "maj", "x":
		return LevelMajor, nil
	case "2", "minor", "min", "xy":
		return LevelMinor, nil
	case "3", "patch", "pth", "xyz":
		return LevelPatch, nil
	default:
		return 0, fmt.Errorf("invalid level %q: must be 1-3 or major, minor, patch", s)
	}
}

// RepositoryBase returns the lower-cased last path segment of a repository
// name: "docker.io/library/Node" -> "node".
func RepositoryBase(repository string) string {
	r := strings.ToLower(strings.TrimSpace(repository))
	if i := strings.LastIndex(r, "/"); i >= 0 {
		r = r[i+1:]
	}
	return r
}

// Detector picks a Level for a repository given its parsed candidate pool.
// The boolean is false when the detector has no opinion.
type Detector interface {
	Detect(repository string, pool []Version) (Level, bool)
}

// Fixed always answers with a pre-supplied level (a --level flag or a rule).
type Fixed Level

// Detect implements Detector.
func (f Fixed) Detect(string, []Version) (Level, bool) {
	l := Level(f)
	return l, l.Valid()
}

// KnowledgeBase maps well-known repository names to the level their
// maintainers version by.
type KnowledgeBase map[string]Level

// DefaultKnowledgeBase returns the built-in table.
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		"debian":   LevelMajor, // 11, 12
		"ubuntu":   LevelMajor, // YY.MM
		"centos":   LevelMajor,
		"node":     LevelMajor, // 18, 20, 22
		"mysql":    LevelMajor, // 5.x, 8.x
		"alpine":   LevelMinor, // 3.19, 3.20
		"nginx":    LevelMinor, // 1.x for years
		"python":   LevelMinor,
		"php":      LevelMinor,
		"golang":   LevelMinor,
		"postgres": LevelMinor,
		"mariadb":  LevelMinor,
		"mongo":    LevelMinor,
		"redis":    LevelMinor,
	}
}

// Detect implements Detector with an exact, case-insensitive match on the
// repository's last path segment.
func (kb KnowledgeBase) Detect(repository string, _ []Version) (Level, bool) {
	l, ok := kb[RepositoryBase(repository)]
	return l, ok
}

// Statistical infers the level from the observed tag history: the coarsest
// position at which the pool shows at least MinDistinct values, with every
// higher position held at its most common combination.
type Statistical struct {
	// MinDistinct is the number of distinct values required at a position
	// for it to count as varying. Values below 2 mean 2.
	MinDistinct int
}

// Detect implements Detector.
func (s Statistical) Detect(_ string, pool []Version) (Level, bool) {
	need := s.MinDistinct
	if need < 2 {
		need = 2
	}

	for _, l := range []Level{LevelMajor, LevelMinor, LevelPatch} {
		pos := int(l) - 1

		eligible := make([]Version, 0, len(pool))
		for _, v := range pool {
			if len(v.Components) > pos {
				eligible = append(eligible, v)
			}
		}
		if len(eligible) == 0 {
			break
		}

		prefix := mostCommonPrefix(eligible, pos)
		seen := make(map[int]struct{})
		for _, v := range eligible {
			if hasPrefix(v, prefix) {
				seen[v.Components[pos]] = struct{}{}
			}
		}

		if len(seen) >= need {
			return l, true
		}
	}

	return 0, false
}

// mostCommonPrefix returns the most frequent combination of the first n
// components. Ties go to the newest combination.
func mostCommonPrefix(pool []Version, n int) Version {
	if n == 0 {
		return Version{}
	}

	counts := make(map[string]int)
	reps := make(map[string]Version)
	for _, v := range pool {
		p := FromComponents(v.Components[:n]...)
		key := p.Label()
		counts[key]++
		reps[key] = p
	}

	var best Version
	bestCount := 0
	for key, c := range counts {
		p := reps[key]
		if c > bestCount || (c == bestCount && p.Compare(best) > 0) {
			best, bestCount = p, c
		}
	}
	return best
}

func hasPrefix(v, prefix Version) bool {
	for i, c := range prefix.Components {
		if v.Component(i) != c {
			return false
		}
	}
	return true
}

// Chain asks each detector in turn and returns the first answer.
type Chain []Detector

// Detect implements Detector.
func (c Chain) Detect(repository string, pool []Version) (Level, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if l, ok := d.Detect(repository, pool); ok {
			return l, true
		}
	}
	return 0, false
}

// DefaultDetector is the knowledge base followed by statistical inference.
func DefaultDetector() Chain {
	return Chain{DefaultKnowledgeBase(), Statistical{}}
}

// DetectLevel resolves the level for a repository. A valid override
// short-circuits detection; an undecided detector yields DefaultLevel.
func DetectLevel(d Detector, override Level, repository string, pool []Version) Level {
	if override.Valid() {
		return override
	}
	if d != nil {
		if l, ok := d.Detect(repository, pool); ok {
			return l
		}
	}
	return DefaultLevel
}
