package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"scenic/internal/runner"
)

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	// Screenshot links are relative so the run directory stays portable.
	"shotHref": func(path string) string { return filepath.Base(path) },
}).Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Run {{.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; }
.PASSED { color: #1a7f37; }
.FAILED { color: #cf222e; }
.ERROR { color: #9a6700; }
.totals { margin: 1rem 0; }
img.shot { max-width: 320px; display: block; }
</style>
</head>
<body>
<h1>Run {{.ID}}</h1>
<p>{{.Timestamp.Format "2006-01-02 15:04:05 MST"}}</p>
<p class="totals">
{{.Totals.Total}} scenarios:
<span class="PASSED">{{.Totals.Passed}} passed</span>,
<span class="FAILED">{{.Totals.Failed}} failed</span>,
<span class="ERROR">{{.Totals.Errors}} errored</span>
</p>
<table>
<tr><th>Scenario</th><th>Status</th><th>Duration</th><th>Detail</th><th>Screenshot</th></tr>
{{range .Verdicts}}
<tr>
<td>{{.ScenarioName}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{.DurationMs}} ms</td>
<td>{{.Detail}}</td>
<td>{{if .ScreenshotPath}}<a href="{{shotHref .ScreenshotPath}}"><img class="shot" src="{{shotHref .ScreenshotPath}}"></a>{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// WriteHTML renders a human-readable report next to the JSON one.
func WriteHTML(dir string, rep *runner.Report) (string, error) {
	out := filepath.Join(dir, rep.ID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(out, htmlName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	defer f.Close()

	if err := htmlTmpl.Execute(f, rep); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return path, nil
}
