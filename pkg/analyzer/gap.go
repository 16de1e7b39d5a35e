package analyzer

import (
	"github.com/Patrick2402/image-version-analyzer/pkg/rules"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// GapResult is the distance between a current and a recommended version.
type GapResult struct {
	Gap         int             `json:"gap"`
	Recommended version.Version `json:"recommended"`
	// Missing lists the labels between current and recommended at the
	// deciding position, recommended itself excluded.
	Missing []string `json:"missing,omitempty"`
	// Steps is true when Gap counts LTS ladder steps.
	Steps bool `json:"steps,omitempty"`
}

// CalculateGap compares current and recommended at positions up to level.
// The first differing position decides; a current version ahead of the
// recommendation gives a gap of 0. With a step policy at major level the
// gap counts ladder steps instead of raw major numbers.
func CalculateGap(current, recommended version.Version, level version.Level, rule *rules.Rule) GapResult {
	res := GapResult{Recommended: recommended}
	if !level.Valid() {
		level = version.DefaultLevel
	}

	pos := -1
	for i := 0; i < int(level); i++ {
		if current.Component(i) != recommended.Component(i) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return res
	}

	from, to := current.Component(pos), recommended.Component(pos)
	if to <= from {
		return res
	}

	res.Gap = to - from
	res.Missing = missingLabels(current, pos, from, to, recommended.Prefix, rule)

	if pos == 0 && level == version.LevelMajor && rule.StepPolicy() {
		res.Gap = ladderSteps(from, to, rule)
		res.Steps = true
	}

	return res
}

// missingLabels lists the labels strictly between from and to at position
// pos, keeping current's higher positions: "20", "1.21", "1.24.1".
func missingLabels(current version.Version, pos, from, to int, prefix string, rule *rules.Rule) []string {
	var out []string
	for n := from + 1; n < to; n++ {
		parts := make([]int, pos+1)
		for i := 0; i < pos; i++ {
			parts[i] = current.Component(i)
		}
		parts[pos] = n

		v := version.FromComponents(parts...)
		if rule.Skipped(v) {
			continue
		}
		out = append(out, prefix+v.Label())
	}
	return out
}

// ladderSteps counts the rungs in (from, to] and rounds up to whole steps.
func ladderSteps(from, to int, rule *rules.Rule) int {
	rungs := 0
	for _, r := range rule.Ladder() {
		if r > from && r <= to {
			rungs++
		}
	}
	step := *rule.StepBy
	return (rungs + step - 1) / step
}
