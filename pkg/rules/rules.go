// Package rules loads per-repository version policy overrides.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/woozymasta/rats"

	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// Rule is the override policy for one repository. Nil pointers and empty
// slices mean "not set".
type Rule struct {
	Level        *version.Level `json:"level,omitempty"`
	LTSVersions  []int          `json:"lts_versions,omitempty"`
	StepBy       *int           `json:"step_by,omitempty"`
	SkipVersions []string       `json:"skip_versions,omitempty"`
	// Constraint is a semver range ("<2.0", "~1.24") candidates must satisfy.
	Constraint string `json:"constraint,omitempty"`
	// Include and Exclude are regular expressions matched against raw tags
	// before parsing, e.g. "-alpine" or "windowsservercore".
	Include string `json:"include,omitempty"`
	Exclude string `json:"exclude,omitempty"`

	constraint *semver.Constraints
	include    *regexp.Regexp
	exclude    *regexp.Regexp
}

// HasLTS reports whether an LTS set is configured.
func (r *Rule) HasLTS() bool {
	return r != nil && len(r.LTSVersions) > 0
}

// StepPolicy reports whether the step-by-N ladder applies, which needs both
// lts_versions and step_by.
func (r *Rule) StepPolicy() bool {
	return r.HasLTS() && r.StepBy != nil
}

// Ambiguous reports step_by configured without lts_versions. The step
// policy is then ignored.
func (r *Rule) Ambiguous() bool {
	return r != nil && r.StepBy != nil && !r.HasLTS()
}

// IsLTS reports whether major is one of the LTS values.
func (r *Rule) IsLTS(major int) bool {
	if r == nil {
		return false
	}
	for _, v := range r.LTSVersions {
		if v == major {
			return true
		}
	}
	return false
}

// Skipped reports whether v is excluded by skip_versions.
func (r *Rule) Skipped(v version.Version) bool {
	if r == nil {
		return false
	}
	for _, entry := range r.SkipVersions {
		if v.MatchesLabel(entry) {
			return true
		}
	}
	return false
}

// Ladder returns the sorted LTS values that are not skipped.
func (r *Rule) Ladder() []int {
	if !r.HasLTS() {
		return nil
	}

	out := make([]int, 0, len(r.LTSVersions))
	seen := make(map[int]bool, len(r.LTSVersions))
	for _, v := range r.LTSVersions {
		if seen[v] || r.Skipped(version.FromComponents(v)) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Allows reports whether v satisfies the configured constraint, if any.
func (r *Rule) Allows(v version.Version) bool {
	if r == nil || r.constraint == nil {
		return true
	}
	return r.constraint.Check(v.Semver())
}

// Filter drops cosign signature tags (sha256-<hex>.sig) and tags rejected
// by the include/exclude patterns. Order is kept. A nil rule only drops
// signatures.
func (r *Rule) Filter(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	opts := rats.Options{ExcludeSignatures: true}
	if r != nil {
		opts.Include = r.include
		opts.Exclude = r.exclude
	}

	kept := make(map[string]bool, len(tags))
	for _, t := range rats.Select(tags, opts) {
		kept[t] = true
	}

	out := make([]string, 0, len(kept))
	for _, t := range tags {
		if kept[t] {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks field ranges and compiles the constraint and patterns.
func (r *Rule) Validate() error {
	if r.Level != nil && !r.Level.Valid() {
		return fmt.Errorf("level must be between 1 and 3, got %d", int(*r.Level))
	}
	if r.StepBy != nil && *r.StepBy <= 0 {
		return fmt.Errorf("step_by must be a positive integer, got %d", *r.StepBy)
	}
	if r.Constraint != "" {
		c, err := semver.NewConstraint(r.Constraint)
		if err != nil {
			return fmt.Errorf("invalid constraint %q: %w", r.Constraint, err)
		}
		r.constraint = c
	}
	if r.Include != "" {
		re, err := regexp.Compile(r.Include)
		if err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", r.Include, err)
		}
		r.include = re
	}
	if r.Exclude != "" {
		re, err := regexp.Compile(r.Exclude)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", r.Exclude, err)
		}
		r.exclude = re
	}
	return nil
}

// Set holds rules keyed by lower-cased repository name.
type Set map[string]*Rule

// Parse decodes a rules document: a JSON object mapping repository names to
// rule objects. Unknown keys are ignored.
func Parse(data []byte) (Set, error) {
	var raw map[string]*Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing rules: %w", err)
	}

	set := make(Set, len(raw))
	for name, r := range raw {
		if r == nil {
			r = &Rule{}
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule for %q: %w", name, err)
		}
		set[strings.ToLower(strings.TrimSpace(name))] = r
	}

	return set, nil
}

// Load reads and parses a rules file. Any problem is a configuration error.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading rules file: %w", err)
	}

	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Lookup finds the rule for a repository, trying the full path first
// ("bitnami/redis") and then its last segment ("redis").
func (s Set) Lookup(repository string) *Rule {
	if len(s) == 0 {
		return nil
	}

	full := strings.ToLower(strings.TrimSpace(repository))
	if r, ok := s[full]; ok {
		return r
	}
	if r, ok := s[strings.TrimPrefix(full, "library/")]; ok {
		return r
	}
	return s[version.RepositoryBase(full)]
}
