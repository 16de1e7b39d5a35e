// Package ignore decides which image references are excluded from analysis.
//
// A pattern is either a wildcard ("python:3.9*", "node:1?") matched against
// the whole reference, or a regular expression introduced by "regex:" and
// searched anywhere in the reference unless it anchors itself. Regular
// expressions support look-around, so "regex:^debian:(?!11).*$" works.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// RegexPrefix marks a pattern as a regular expression.
const RegexPrefix = "regex:"

// matchTimeout bounds a single regex evaluation.
const matchTimeout = time.Second

// Pattern is one compiled ignore rule.
type Pattern struct {
	Source string // as written, including any "regex:" prefix
	Regex  bool
	re     *regexp2.Regexp
}

// Compile turns a pattern line into a Pattern.
func Compile(source string) (Pattern, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Pattern{}, fmt.Errorf("empty ignore pattern")
	}

	p := Pattern{Source: source}

	var expr string
	if strings.HasPrefix(source, RegexPrefix) {
		p.Regex = true
		expr = strings.TrimPrefix(source, RegexPrefix)
	} else {
		expr = wildcardToRegex(source)
	}

	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid ignore pattern %q: %w", source, err)
	}
	re.MatchTimeout = matchTimeout
	p.re = re

	return p, nil
}

// wildcardToRegex anchors the pattern to the whole string; '*' is any run
// of characters and '?' exactly one.
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Match reports whether the pattern matches s. A regex that times out does
// not match.
func (p Pattern) Match(s string) bool {
	if p.re == nil {
		return false
	}
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

// Matcher holds patterns in load order. It is read-only once built and safe
// for concurrent Match calls.
type Matcher struct {
	patterns []Pattern
}

// New compiles the given pattern lines.
func New(sources ...string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.AddAll(sources); err != nil {
		return nil, err
	}
	return m, nil
}

// Add compiles and appends one pattern. Blank input is ignored.
func (m *Matcher) Add(source string) error {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	p, err := Compile(source)
	if err != nil {
		return err
	}
	m.patterns = append(m.patterns, p)
	return nil
}

// AddAll adds each pattern in order, stopping at the first invalid one.
func (m *Matcher) AddAll(sources []string) error {
	for _, s := range sources {
		if err := m.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// Match returns the first pattern matching ref.
func (m *Matcher) Match(ref string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, p := range m.patterns {
		if p.Match(ref) {
			return p.Source, true
		}
	}
	return "", false
}

// Patterns returns the pattern sources in order.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = p.Source
	}
	return out
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Parse reads newline-delimited patterns. Blank lines and lines starting
// with '#' are skipped.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading ignore patterns: %w", err)
	}
	return out, nil
}

// LoadFile appends the patterns of an ignore file to m. A missing file or an
// invalid pattern is an error.
func (m *Matcher) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening ignore file: %w", err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := m.AddAll(lines); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load builds a Matcher from an ignore file.
func Load(path string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.LoadFile(path); err != nil {
		return nil, err
	}
	return m, nil
}
