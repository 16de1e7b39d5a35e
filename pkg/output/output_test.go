package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

func sp(s string) *string { return &s }
func ip(i int) *int       { return &i }

func sampleReport() *analyzer.Report {
	r := analyzer.NewReport([]analyzer.AnalysisResult{
		{
			Image: "node:18", Status: analyzer.StatusWarning,
			Current: sp("18"), Recommended: sp("22"), Gap: ip(1), Level: "major",
			Missing: []string{"20"},
			Message: "Image is 1 LTS step(s) behind but within threshold (3)",
		},
		{
			Image: "golang:1.20", Status: analyzer.StatusOutdated,
			Current: sp("1.20"), Recommended: sp("1.24"), Gap: ip(4), Level: "minor",
			Missing: []string{"1.21", "1.22", "1.23"},
			Message: "Image is 4 minor version(s) behind",
		},
		{
			Image: "alpine:3.20", Status: analyzer.StatusUpToDate,
			Current: sp("3.20"), Recommended: sp("3.20"), Gap: ip(0), Level: "minor",
			Message: "Image is up-to-date",
		},
		{
			Image: "nginx", Status: analyzer.StatusUnknown,
			Message: "No explicit tag specified (using 'latest')",
		},
	}, []string{"internal/tool:1.0"})
	r.Source = "Dockerfile"
	return r
}

func render(t *testing.T, format string, opts Options, r *analyzer.Report) string {
	t.Helper()
	f, err := New(format, opts)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, r))
	return buf.String()
}

func TestNew_FormatsAndAliases(t *testing.T) {
	assert.Equal(t, []string{"csv", "html", "json", "markdown", "sarif", "text", "yaml"}, Formats())

	for _, name := range Formats() {
		f, err := New(name, Options{})
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	f, err := New("md", Options{})
	require.NoError(t, err)
	assert.IsType(t, &MarkdownFormatter{}, f)

	f, err = New(" YML ", Options{})
	require.NoError(t, err)
	assert.IsType(t, &YAMLFormatter{}, f)

	_, err = New("xml", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestExtension(t *testing.T) {
	for format, want := range map[string]string{
		"text": "txt", "markdown": "md", "md": "md", "YML": "yaml",
		"json": "json", "sarif": "sarif", "html": "html", "csv": "csv",
	} {
		assert.Equal(t, want, Extension(format), format)
	}
}

func TestTextFormatter_Format(t *testing.T) {
	out := render(t, "text", Options{NoColor: true, NoTimestamp: true}, sampleReport())

	assert.NotContains(t, out, "Analysis Time")
	assert.Contains(t, out, "Ignoring 1 image(s):")
	assert.Contains(t, out, "  - internal/tool:1.0")
	assert.Contains(t, out, "IMAGE")
	assert.Contains(t, out, "RECOMMENDED")
	assert.Contains(t, out, "1 OUTDATED IMAGE(S):")
	assert.Contains(t, out, "  - golang:1.20 : Image is 4 minor version(s) behind")
	assert.Contains(t, out, "1 WARNING(S):")
	assert.Contains(t, out, "1 UNKNOWN STATUS:")
	assert.Contains(t, out, "Total: 4  Up-to-date: 1  Outdated: 1  Warnings: 1  Unknown: 1  Ignored: 1")
	assert.Contains(t, out, "RESULT: OUTDATED - At least one image is outdated beyond threshold")
	assert.NotContains(t, out, "\x1b[")
}

func TestTextFormatter_Format_Verdicts(t *testing.T) {
	clean := analyzer.NewReport([]analyzer.AnalysisResult{
		{Image: "alpine:3.20", Status: analyzer.StatusUpToDate, Current: sp("3.20"), Recommended: sp("3.20"), Gap: ip(0), Message: "Image is up-to-date"},
	}, nil)
	out := render(t, "text", Options{NoColor: true}, clean)
	assert.Contains(t, out, "Analysis Time:")
	assert.Contains(t, out, "ALL IMAGES UP-TO-DATE")
	assert.NotContains(t, out, "Ignoring")

	warn := analyzer.NewReport([]analyzer.AnalysisResult{
		{Image: "nginx", Status: analyzer.StatusUnknown, Message: "No explicit tag specified (using 'latest')"},
	}, nil)
	out = render(t, "text", Options{NoColor: true}, warn)
	assert.Contains(t, out, "RESULT: WARNING - Some images have warnings or unknown status")
}

func TestTextFormatter_Format_TruncatesMessage(t *testing.T) {
	long := strings.Repeat("x", 120)
	r := analyzer.NewReport([]analyzer.AnalysisResult{
		{Image: "busybox:1.36", Status: analyzer.StatusWarning, Message: long},
	}, nil)
	out := render(t, "text", Options{NoColor: true, NoTimestamp: true}, r)

	assert.Contains(t, out, strings.Repeat("x", messageLimit-3)+"...")
	// The per-status list keeps the full message.
	assert.Contains(t, out, "  - busybox:1.36 : "+long)
}

func TestTextFormatter_Format_SimilarTags(t *testing.T) {
	r := analyzer.NewReport([]analyzer.AnalysisResult{
		{Image: "golang:1.20", Status: analyzer.StatusOutdated, Current: sp("1.20"),
			Similar: []string{"1.25", "1.24", "1.23", "1.22", "1.21", "1.20", "1.19"}},
		{Image: "alpine:3.20", Status: analyzer.StatusUpToDate, Current: sp("3.20"), Similar: []string{"3.20"}},
		{Image: "nginx", Status: analyzer.StatusUnknown, Message: "No explicit tag specified (using 'latest')"},
	}, nil)
	out := render(t, "text", Options{NoColor: true, NoTimestamp: true}, r)

	assert.Contains(t, out, "Similar tags:")
	assert.Contains(t, out, "  - golang:1.20 : 1.25, 1.24, 1.23, 1.22, 1.21 + 2 more\n")
	assert.Contains(t, out, "  - alpine:3.20 : 3.20\n")
	assert.NotContains(t, out, "  - nginx : \n")
	assert.Less(t, strings.Index(out, "Similar tags:"), strings.Index(out, "OUTDATED IMAGE(S)"))

	assert.NotContains(t, render(t, "text", Options{NoColor: true}, sampleReport()), "Similar tags:")
}

func TestTextFormatter_Format_TruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("é", 100)
	r := analyzer.NewReport([]analyzer.AnalysisResult{
		{Image: "busybox:1.36", Status: analyzer.StatusWarning, Message: long},
	}, nil)
	out := render(t, "text", Options{NoColor: true, NoTimestamp: true}, r)

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("é", messageLimit-3)+"...")
	assert.NotContains(t, out, strings.Repeat("é", messageLimit-2)+"...")
}

func TestJSONFormatter_Format(t *testing.T) {
	out := render(t, "json", Options{NoTimestamp: true}, sampleReport())

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 4, got["total_images"])
	assert.Equal(t, "Dockerfile", got["source"])
	assert.NotContains(t, got, "timestamp")
	assert.NotEmpty(t, got["run_id"])

	results := got["results"].([]any)
	require.Len(t, results, 4)

	first := results[0].(map[string]any)
	assert.Equal(t, "node:18", first["image"])
	assert.Equal(t, "WARNING", first["status"])
	assert.Equal(t, []any{"20"}, first["missing_versions"])

	unknown := results[3].(map[string]any)
	assert.Nil(t, unknown["current"])
	assert.Nil(t, unknown["gap"])

	summary := got["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["outdated"])
	assert.EqualValues(t, 1, summary["ignored"])
}

func TestJSONFormatter_Format_Timestamp(t *testing.T) {
	out := render(t, "json", Options{}, sampleReport())
	assert.Contains(t, out, `"timestamp":`)
}

func TestYAMLFormatter_Format(t *testing.T) {
	out := render(t, "yaml", Options{NoTimestamp: true}, sampleReport())

	var got struct {
		TotalImages int `yaml:"total_images"`
		Results     []struct {
			Image       string  `yaml:"image"`
			Status      string  `yaml:"status"`
			Recommended *string `yaml:"recommended"`
		} `yaml:"results"`
		Ignored []string `yaml:"ignored"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4, got.TotalImages)
	require.Len(t, got.Results, 4)
	assert.Equal(t, "OUTDATED", got.Results[1].Status)
	require.NotNil(t, got.Results[1].Recommended)
	assert.Equal(t, "1.24", *got.Results[1].Recommended)
	assert.Nil(t, got.Results[3].Recommended)
	assert.Equal(t, []string{"internal/tool:1.0"}, got.Ignored)
}

func TestCSVFormatter_Format(t *testing.T) {
	out := render(t, "csv", Options{}, sampleReport())

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"image", "status", "current", "recommended", "gap", "message"}, rows[0])
	assert.Equal(t, []string{"golang:1.20", "OUTDATED", "1.20", "1.24", "4", "Image is 4 minor version(s) behind"}, rows[2])
	assert.Equal(t, []string{"nginx", "UNKNOWN", "", "", "", "No explicit tag specified (using 'latest')"}, rows[4])
}

func TestMarkdownFormatter_Format(t *testing.T) {
	r := sampleReport()
	r.Results[0].Message = "a | b"
	out := render(t, "markdown", Options{NoTimestamp: true}, r)

	assert.True(t, strings.HasPrefix(out, "# Docker Image Analysis Report\n"))
	assert.NotContains(t, out, "Generated:")
	assert.Contains(t, out, "Source: `Dockerfile`")
	assert.Contains(t, out, "| `golang:1.20` | ⛔ OUTDATED | 1.20 | 1.24 | 4 | Image is 4 minor version(s) behind |")
	assert.Contains(t, out, "| `nginx` | ❓ UNKNOWN | - | - | - |")
	assert.Contains(t, out, `a \| b`)
	assert.Contains(t, out, "## Recommended Updates")
	assert.Contains(t, out, "- `golang:1.20`: 1.20 → 1.24")
	assert.Contains(t, out, "## Ignored Images")
}

func TestHTMLFormatter_Format(t *testing.T) {
	r := sampleReport()
	r.Results[0].Message = "<b>bad</b>"
	out := render(t, "html", Options{NoTimestamp: true}, r)

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.NotContains(t, out, "Generated:")
	assert.Contains(t, out, `<td class="outdated">OUTDATED</td>`)
	assert.Contains(t, out, `<td class="up-to-date">UP-TO-DATE</td>`)
	assert.Contains(t, out, "&lt;b&gt;bad&lt;/b&gt;")
	assert.NotContains(t, out, "<b>bad</b>")
	assert.Contains(t, out, "<li>internal/tool:1.0</li>")
}

func TestSarifFormatter_Format(t *testing.T) {
	opts := Options{Version: "1.2.3", Lines: map[string]int{"golang:1.20": 7}}
	out := render(t, "sarif", opts, sampleReport())

	var got SarifReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2.1.0", got.Version)
	require.Len(t, got.Runs, 1)

	run := got.Runs[0]
	assert.Equal(t, "imgcheck", run.Tool.Driver.Name)
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)
	assert.Len(t, run.Tool.Driver.Rules, 3)

	// UP-TO-DATE is omitted.
	require.Len(t, run.Results, 3)

	byRule := map[string]SarifResult{}
	for _, res := range run.Results {
		byRule[res.RuleID] = res
	}
	assert.Equal(t, "error", byRule["outdated"].Level)
	assert.Equal(t, "warning", byRule["warning"].Level)
	assert.Equal(t, "note", byRule["unknown"].Level)

	outdated := byRule["outdated"]
	assert.Contains(t, outdated.Message.Text, "recommended: 1.24")
	loc := outdated.Locations[0].PhysicalLocation
	assert.Equal(t, "Dockerfile", loc.ArtifactLocation.URI)
	require.NotNil(t, loc.Region)
	assert.Equal(t, 7, loc.Region.StartLine)

	assert.Nil(t, byRule["unknown"].Locations[0].PhysicalLocation.Region)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "nested", "report.json")
	f, err := New("json", Options{NoTimestamp: true})
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, f, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_images": 4`)
}
