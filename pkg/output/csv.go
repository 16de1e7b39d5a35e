package output

import (
	"encoding/csv"
	"io"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// CSVFormatter writes one row per result. Absent values are empty cells.
type CSVFormatter struct{}

// Format writes the report.
func (f *CSVFormatter) Format(w io.Writer, r *analyzer.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"image", "status", "current", "recommended", "gap", "message"}); err != nil {
		return err
	}

	for _, res := range r.Results {
		gap := ""
		if res.Gap != nil {
			gap = gapStr(res.Gap)
		}
		row := []string{res.Image, string(res.Status), deref(res.Current), deref(res.Recommended), gap, res.Message}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
