package output

import (
	"html/template"
	"io"
	"strings"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// HTMLFormatter writes a standalone HTML page.
type HTMLFormatter struct {
	Options
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"str":   str,
	"gap":   gapStr,
	"class": statusClass,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Docker Image Analysis Report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #f4f4f4; }
.outdated { color: #c0392b; font-weight: bold; }
.warning { color: #d68910; font-weight: bold; }
.up-to-date { color: #1e8449; font-weight: bold; }
.unknown { color: #7d3c98; font-weight: bold; }
</style>
</head>
<body>
<h1>Docker Image Analysis Report</h1>
{{- if .Timestamp}}
<p>Generated: {{.Timestamp}}</p>
{{- end}}
{{- if .Report.Source}}
<p>Source: <code>{{.Report.Source}}</code></p>
{{- end}}
<h2>Summary</h2>
<ul>
<li>Total: {{.Report.Summary.Total}}</li>
<li class="up-to-date">Up-to-date: {{.Report.Summary.UpToDate}}</li>
<li class="outdated">Outdated: {{.Report.Summary.Outdated}}</li>
<li class="warning">Warnings: {{.Report.Summary.Warnings}}</li>
<li class="unknown">Unknown: {{.Report.Summary.Unknown}}</li>
<li>Ignored: {{.Report.Summary.Ignored}}</li>
</ul>
<h2>Results</h2>
<table>
<tr><th>Image</th><th>Status</th><th>Current</th><th>Recommended</th><th>Gap</th><th>Message</th></tr>
{{- range .Report.Results}}
<tr><td>{{.Image}}</td><td class="{{class .Status}}">{{.Status}}</td><td>{{str .Current}}</td><td>{{str .Recommended}}</td><td>{{gap .Gap}}</td><td>{{.Message}}</td></tr>
{{- end}}
</table>
{{- if .Report.Ignored}}
<h2>Ignored Images</h2>
<ul>
{{- range .Report.Ignored}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
</body>
</html>
`))

func statusClass(s analyzer.Status) string {
	return strings.ToLower(string(s))
}

// Format writes the report.
func (f *HTMLFormatter) Format(w io.Writer, r *analyzer.Report) error {
	data := struct {
		Report    *analyzer.Report
		Timestamp string
	}{Report: r}
	if !f.NoTimestamp {
		data.Timestamp = timestamp(r)
	}
	return htmlTemplate.Execute(w, data)
}
