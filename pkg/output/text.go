package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

const (
	messageLimit = 80 // Max characters for the message column
	similarLimit = 5  // Similar tags shown per image
)

// TextFormatter prints a table followed by per-status lists and a verdict.
type TextFormatter struct {
	Options
}

func (f *TextFormatter) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if f.NoColor {
		c.DisableColor()
	}
	return c
}

func (f *TextFormatter) statusColor(s analyzer.Status) *color.Color {
	switch s {
	case analyzer.StatusOutdated:
		return f.paint(color.FgRed)
	case analyzer.StatusWarning:
		return f.paint(color.FgYellow)
	case analyzer.StatusUpToDate:
		return f.paint(color.FgGreen)
	default:
		return f.paint(color.FgMagenta)
	}
}

// Format writes the report.
func (f *TextFormatter) Format(out io.Writer, r *analyzer.Report) error {
	if !f.NoTimestamp {
		fmt.Fprintf(out, "Analysis Time: %s\n\n", timestamp(r))
	}

	if len(r.Ignored) > 0 {
		fmt.Fprintf(out, "Ignoring %d image(s):\n", len(r.Ignored))
		for _, img := range r.Ignored {
			fmt.Fprintf(out, "  - %s\n", img)
		}
		fmt.Fprintln(out)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tSTATUS\tCURRENT\tRECOMMENDED\tGAP\tMESSAGE")
	fmt.Fprintln(w, "-----\t------\t-------\t-----------\t---\t-------")
	for _, res := range r.Results {
		msg := strings.ReplaceAll(res.Message, "\t", " ")
		if runes := []rune(msg); len(runes) > messageLimit {
			msg = string(runes[:messageLimit-3]) + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Image,
			f.statusColor(res.Status).Sprint(res.Status),
			str(res.Current),
			str(res.Recommended),
			gapStr(res.Gap),
			msg,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	f.similar(out, r)

	f.section(out, r, analyzer.StatusOutdated, "OUTDATED IMAGE(S)")
	f.section(out, r, analyzer.StatusWarning, "WARNING(S)")
	f.section(out, r, analyzer.StatusUnknown, "UNKNOWN STATUS")

	s := r.Summary
	fmt.Fprintf(out, "\nTotal: %d  Up-to-date: %d  Outdated: %d  Warnings: %d  Unknown: %d  Ignored: %d\n",
		s.Total, s.UpToDate, s.Outdated, s.Warnings, s.Unknown, s.Ignored)

	switch {
	case s.Outdated > 0:
		f.paint(color.FgRed).Fprintln(out, "RESULT: OUTDATED - At least one image is outdated beyond threshold")
	case s.Warnings > 0 || s.Unknown > 0:
		f.paint(color.FgYellow).Fprintln(out, "RESULT: WARNING - Some images have warnings or unknown status")
	default:
		f.paint(color.FgGreen).Fprintln(out, "ALL IMAGES UP-TO-DATE")
	}
	return nil
}

func (f *TextFormatter) similar(out io.Writer, r *analyzer.Report) {
	header := false
	for _, res := range r.Results {
		if len(res.Similar) == 0 {
			continue
		}
		if !header {
			f.paint(color.FgBlue).Fprintln(out, "\nSimilar tags:")
			header = true
		}
		shown := res.Similar
		if len(shown) > similarLimit {
			shown = shown[:similarLimit]
		}
		line := strings.Join(shown, ", ")
		if more := len(res.Similar) - len(shown); more > 0 {
			line += fmt.Sprintf(" + %d more", more)
		}
		fmt.Fprintf(out, "  - %s : %s\n", res.Image, line)
	}
}

func (f *TextFormatter) section(out io.Writer, r *analyzer.Report, status analyzer.Status, title string) {
	items := r.ByStatus(status)
	if len(items) == 0 {
		return
	}
	f.statusColor(status).Fprintf(out, "\n%d %s:\n", len(items), title)
	for _, res := range items {
		fmt.Fprintf(out, "  - %s : %s\n", res.Image, res.Message)
	}
}
