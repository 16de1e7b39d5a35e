package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// JSONFormatter writes the report as indented JSON.
type JSONFormatter struct {
	Options
}

// Format writes the report.
func (f *JSONFormatter) Format(w io.Writer, r *analyzer.Report) error {
	data, err := json.MarshalIndent(newView(r, f.Options), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// YAMLFormatter writes the report as YAML.
type YAMLFormatter struct {
	Options
}

// Format writes the report.
func (f *YAMLFormatter) Format(w io.Writer, r *analyzer.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newView(r, f.Options)); err != nil {
		return err
	}
	return enc.Close()
}
