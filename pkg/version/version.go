package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// maxComponents is the number of numeric positions kept (major, minor, patch).
const maxComponents = 3

// ErrUnparseable is returned when a tag carries no leading numeric component.
var ErrUnparseable = errors.New("tag is not a version")

var (
	// Tags made only of a long digit run are dates or build IDs, not versions.
	longNumberRe = regexp.MustCompile(`^\d{6,}$`)
	digitRunRe   = regexp.MustCompile(`\d+`)
	prereleaseRe = regexp.MustCompile(`(?i)(^|[^a-z])(alpha|beta|rc|dev|test|preview|nightly|snapshot)`)

	// Dotted numeric head of a tag, before any variant suffix.
	numericHeadRe = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)`)
)

// Version is a tag broken into numeric components and an optional variant suffix.
type Version struct {
	Raw        string `json:"raw"`              // tag as published
	Prefix     string `json:"prefix,omitempty"` // "v" when the tag had one
	Components []int  `json:"components"`       // major[, minor[, patch]]
	Suffix     string `json:"suffix,omitempty"` // variant such as "alpine" or "slim-bookworm"
}

// Parse extracts the leading run of numeric groups from tag.
//
// Groups are separated by '.' or '-'; a dash-separated group must be fully
// numeric, so "1.20-alpine" gives [1 20] with suffix "alpine" while
// "1.2rc1" gives [1 2] with suffix "rc1". A leading "v" is stripped and
// remembered. Tags without a leading number fail with ErrUnparseable.
func Parse(tag string) (Version, error) {
	s := strings.TrimSpace(tag)
	v := Version{Raw: tag}

	if len(s) > 1 && s[0] == 'v' && isDigit(s[1]) {
		v.Prefix = "v"
		s = s[1:]
	}

	i := 0
	for len(v.Components) < maxComponents {
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j == i {
			break
		}

		n, err := strconv.Atoi(s[i:j])
		if err != nil {
			break
		}
		v.Components = append(v.Components, n)
		i = j

		if len(v.Components) == maxComponents || !continuesWithGroup(s, i) {
			break
		}
		i++ // separator
	}

	if len(v.Components) == 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrUnparseable, tag)
	}

	rest := s[i:]
	if rest != "" && (rest[0] == '-' || rest[0] == '.') {
		rest = rest[1:]
	}
	v.Suffix = rest

	return v, nil
}

// continuesWithGroup reports whether s[i:] starts with a separator followed by
// another numeric group. Dash groups must end at a separator or the end of s.
func continuesWithGroup(s string, i int) bool {
	if i+1 >= len(s) || !isDigit(s[i+1]) {
		return false
	}

	switch s[i] {
	case '.':
		return true
	case '-':
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		return j == len(s) || s[j] == '.' || s[j] == '-'
	default:
		return false
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// MustParse is like Parse but panics on failure. Intended for tests and tables.
func MustParse(tag string) Version {
	v, err := Parse(tag)
	if err != nil {
		panic(err)
	}
	return v
}

// FromComponents builds a bare version such as "22" from numeric parts.
func FromComponents(parts ...int) Version {
	v := Version{Components: append([]int(nil), parts...)}
	v.Raw = v.Label()
	return v
}

// Label returns the canonical numeric label, e.g. "1.20".
func (v Version) Label() string {
	parts := make([]string, len(v.Components))
	for i, c := range v.Components {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}

// String renders the version back into tag form. Parse(v.String()) is Equal to v.
func (v Version) String() string {
	s := v.Prefix + v.Label()
	if v.Suffix != "" {
		s += "-" + v.Suffix
	}
	return s
}

// Tag returns the raw tag when known, otherwise the rendered form.
func (v Version) Tag() string {
	if v.Raw != "" {
		return v.Raw
	}
	return v.String()
}

// Component returns the value at position i; absent positions read as 0.
func (v Version) Component(i int) int {
	if i < 0 || i >= len(v.Components) {
		return 0
	}
	return v.Components[i]
}

// Major is shorthand for Component(0).
func (v Version) Major() int {
	return v.Component(0)
}

// Equal compares structure, ignoring the raw spelling.
func (v Version) Equal(o Version) bool {
	if v.Prefix != o.Prefix || v.Suffix != o.Suffix || len(v.Components) != len(o.Components) {
		return false
	}
	for i := range v.Components {
		if v.Components[i] != o.Components[i] {
			return false
		}
	}
	return true
}

// Semver returns a semver view of the numeric part (missing positions are 0).
func (v Version) Semver() *semver.Version {
	return semver.New(
		uint64(v.Component(0)),
		uint64(v.Component(1)),
		uint64(v.Component(2)),
		"", "",
	)
}

// Compare orders versions by their numeric components only.
func (v Version) Compare(o Version) int {
	return v.Semver().Compare(o.Semver())
}

// MatchesLabel reports whether entry names this version: either the raw tag
// itself, or a label whose components prefix the version ("19" matches
// "19.1.0", "3.11" matches "3.11.4-slim").
func (v Version) MatchesLabel(entry string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false
	}
	if entry == v.Raw {
		return true
	}

	e, err := Parse(entry)
	if err != nil || len(e.Components) > len(v.Components) {
		return false
	}
	for i, c := range e.Components {
		if v.Components[i] != c {
			return false
		}
	}

	return e.Suffix == "" || e.Suffix == v.Suffix
}

// IsPrerelease reports whether the variant suffix marks an unstable build.
func (v Version) IsPrerelease() bool {
	return v.Suffix != "" && prereleaseRe.MatchString(v.Suffix)
}

// IsVersionTag filters out tags that parse numerically but are really dates
// or build identifiers (20240101, 1.2.3.4.5, 2024.01.15.1234). Only the
// dotted numeric head is inspected, so digits inside a variant such as
// "alpine3.19" or "bookworm-20240101" do not count.
func IsVersionTag(tag string) bool {
	m := numericHeadRe.FindStringSubmatch(tag)
	if m == nil {
		return false
	}
	head := m[1]

	if longNumberRe.MatchString(head) {
		return false
	}

	runs := digitRunRe.FindAllString(head, -1)
	if len(runs) > 4 {
		return false
	}

	total := 0
	for _, r := range runs {
		total += len(r)
	}
	if total > 8 {
		return false
	}

	_, err := Parse(tag)
	return err == nil
}

// Max returns the highest version in pool. Ties keep the earliest entry.
func Max(pool []Version) (Version, bool) {
	if len(pool) == 0 {
		return Version{}, false
	}

	best := pool[0]
	for _, v := range pool[1:] {
		if v.Compare(best) > 0 {
			best = v
		}
	}
	return best, true
}
