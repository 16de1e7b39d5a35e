// Package output renders analysis reports.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// Formatter writes a report in one format.
type Formatter interface {
	Format(w io.Writer, r *analyzer.Report) error
}

// Options tune the renderers. Not every option applies to every format.
type Options struct {
	NoColor     bool
	NoTimestamp bool
	Version     string         // tool version, reported in SARIF
	Lines       map[string]int // image -> line in the source file
}

var constructors = map[string]func(Options) Formatter{
	"text":     func(o Options) Formatter { return &TextFormatter{Options: o} },
	"json":     func(o Options) Formatter { return &JSONFormatter{Options: o} },
	"yaml":     func(o Options) Formatter { return &YAMLFormatter{Options: o} },
	"csv":      func(Options) Formatter { return &CSVFormatter{} },
	"markdown": func(o Options) Formatter { return &MarkdownFormatter{Options: o} },
	"html":     func(o Options) Formatter { return &HTMLFormatter{Options: o} },
	"sarif":    func(o Options) Formatter { return &SarifFormatter{Options: o} },
}

// Formats lists the supported format names.
func Formats() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the formatter for a format name. "md" and "yml" are accepted
// as aliases.
func New(format string, opts Options) (Formatter, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	switch name {
	case "md":
		name = "markdown"
	case "yml":
		name = "yaml"
	}

	c, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unsupported output format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return c(opts), nil
}

// Extension returns the file extension for a format name, without the dot.
func Extension(format string) string {
	switch name := strings.ToLower(strings.TrimSpace(format)); name {
	case "text":
		return "txt"
	case "markdown", "md":
		return "md"
	case "yaml", "yml":
		return "yaml"
	default:
		return name
	}
}

// WriteFile renders r into path, creating parent directories as needed.
func WriteFile(path string, f Formatter, r *analyzer.Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := f.Format(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return file.Close()
}

// reportView is the serialized shape of a report for json and yaml.
type reportView struct {
	RunID       string                    `json:"run_id" yaml:"run_id"`
	Source      string                    `json:"source,omitempty" yaml:"source,omitempty"`
	Timestamp   string                    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	TotalImages int                       `json:"total_images" yaml:"total_images"`
	Results     []analyzer.AnalysisResult `json:"results" yaml:"results"`
	Ignored     []string                  `json:"ignored" yaml:"ignored"`
	Summary     analyzer.Summary          `json:"summary" yaml:"summary"`
}

func newView(r *analyzer.Report, opts Options) reportView {
	v := reportView{
		RunID:       r.RunID,
		Source:      r.Source,
		TotalImages: r.Summary.Total,
		Results:     r.Results,
		Ignored:     r.Ignored,
		Summary:     r.Summary,
	}
	if !opts.NoTimestamp {
		v.Timestamp = timestamp(r)
	}
	return v
}

func timestamp(r *analyzer.Report) string {
	t := r.GeneratedAt
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.Format(time.RFC3339)
}

// str renders an optional value as text, "-" when absent.
func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func gapStr(g *int) string {
	if g == nil {
		return "-"
	}
	return strconv.Itoa(*g)
}
