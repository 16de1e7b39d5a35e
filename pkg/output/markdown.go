package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// MarkdownFormatter writes a GitHub-flavoured Markdown report.
type MarkdownFormatter struct {
	Options
}

var statusEmoji = map[analyzer.Status]string{
	analyzer.StatusUpToDate: "✅",
	analyzer.StatusOutdated: "⛔",
	analyzer.StatusWarning:  "⚠️",
	analyzer.StatusUnknown:  "❓",
}

// Format writes the report.
func (f *MarkdownFormatter) Format(w io.Writer, r *analyzer.Report) error {
	var b strings.Builder

	b.WriteString("# Docker Image Analysis Report\n\n")
	if !f.NoTimestamp {
		fmt.Fprintf(&b, "*Generated: %s*\n\n", timestamp(r))
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "Source: `%s`\n\n", r.Source)
	}

	s := r.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Status | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| %s Up-to-date | %d |\n", statusEmoji[analyzer.StatusUpToDate], s.UpToDate)
	fmt.Fprintf(&b, "| %s Outdated | %d |\n", statusEmoji[analyzer.StatusOutdated], s.Outdated)
	fmt.Fprintf(&b, "| %s Warnings | %d |\n", statusEmoji[analyzer.StatusWarning], s.Warnings)
	fmt.Fprintf(&b, "| %s Unknown | %d |\n", statusEmoji[analyzer.StatusUnknown], s.Unknown)
	fmt.Fprintf(&b, "| Ignored | %d |\n\n", s.Ignored)

	b.WriteString("## Results\n\n")
	b.WriteString("| Image | Status | Current | Recommended | Gap | Message |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| `%s` | %s %s | %s | %s | %s | %s |\n",
			res.Image, statusEmoji[res.Status], res.Status,
			mdCell(str(res.Current)), mdCell(str(res.Recommended)), gapStr(res.Gap), mdCell(res.Message))
	}

	if outdated := r.ByStatus(analyzer.StatusOutdated); len(outdated) > 0 {
		b.WriteString("\n## Recommended Updates\n\n")
		for _, res := range outdated {
			fmt.Fprintf(&b, "- `%s`: %s → %s (%s)\n", res.Image, str(res.Current), str(res.Recommended), res.Message)
		}
	}

	if len(r.Ignored) > 0 {
		b.WriteString("\n## Ignored Images\n\n")
		for _, img := range r.Ignored {
			fmt.Fprintf(&b, "- `%s`\n", img)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// mdCell escapes pipes so a value cannot break the table.
func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
