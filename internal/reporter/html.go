package reporter

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(part, total int) string {
		if total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>API path test report {{.SuiteID}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; vertical-align: top; }
th { background: #f4f4f4; }
.summary span { display: inline-block; margin-right: 1.5rem; }
.PASSED { color: #1a7f37; }
.FAILED { color: #cf222e; }
tr.mismatch { background: #fff1e5; }
code { font-size: .9em; }
</style>
</head>
<body>
<h1>API path test report</h1>
<p>Suite <code>{{.SuiteID}}</code> generated {{.Timestamp.Format "2006-01-02 15:04:05"}} in {{.Duration}}</p>
<div class="summary">
<span>Scenarios: <b>{{.TotalScenarios}}</b></span>
<span class="PASSED">Passed: <b>{{.PassedScenarios}}</b></span>
<span class="FAILED">Failed: <b>{{.FailedScenarios}}</b></span>
<span>Unexpected verdicts: <b>{{.Mismatched}}</b> ({{percent .Mismatched .TotalScenarios}})</span>
</div>
<h2>Scenarios</h2>
<table>
<thead><tr><th>Scenario</th><th>Expected</th><th>Actual</th><th>Reason</th><th>Duration</th></tr></thead>
<tbody>
{{range .Results}}<tr{{if not .Matched}} class="mismatch"{{end}}>
<td>{{.Description}}<br><code>{{.RunID}}</code></td>
<td class="{{.Expected}}">{{.Expected}}</td>
<td class="{{.Actual}}">{{.Actual}}</td>
<td>{{.Reason}}{{range .Warnings}}<br><i>{{.}}</i>{{end}}</td>
<td>{{.Duration}}</td>
</tr>
{{if .Steps}}<tr><td colspan="5"><table>
<thead><tr><th>Step</th><th>Status</th><th>Duration</th></tr></thead>
{{range .Steps}}<tr><td>{{.Step}}</td><td>{{.StatusCode}}</td><td>{{.Duration}}</td></tr>
{{end}}</table></td></tr>{{end}}
{{end}}</tbody>
</table>
</body>
</html>
`))

// RenderHTML renders the report as a standalone HTML page
func RenderHTML(report Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// generateHTMLReport generates an HTML format report
func (r *Reporter) generateHTMLReport(report Report) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}

	data, err := RenderHTML(report)
	if err != nil {
		return "", err
	}

	reportPath := r.reportPath(report, "html")
	return reportPath, os.WriteFile(reportPath, data, 0644)
}
