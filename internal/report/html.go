package report

import (
	"bytes"
	"html/template"
	"strings"
)

// reportTemplate renders a static, script-free document. html/template
// escapes every interpolated field, so a malicious value cannot inject
// markup into the rendered report.
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"join": func(parts []string) string { return strings.Join(parts, ", ") },
}).Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>DataGuardian Report</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; margin: 24px; }
    .card { border: 1px solid #e5e7eb; border-radius: 12px; padding: 16px; margin-bottom: 16px; }
    .pill { display: inline-block; padding: 4px 10px; border-radius: 999px; border: 1px solid #e5e7eb; font-size: 12px; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; border-bottom: 1px solid #f1f5f9; padding: 10px 8px; vertical-align: top; }
    th { font-size: 12px; color: #475569; text-transform: uppercase; letter-spacing: .04em; }
    code { background: #f8fafc; padding: 2px 6px; border-radius: 6px; }
    .muted { color: #64748b; }
  </style>
</head>
<body>
  <h1>DataGuardian Report</h1>
  <p class="muted">Generated at: {{.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}} &middot; Target: <code>{{.Target}}</code></p>

  <div class="card">
    <h2>Risk Summary</h2>
    <p><span class="pill">Level: {{.Summary.Level}}</span> <span class="pill">Score: {{.Summary.Score}}</span></p>
    <p class="muted">Counts by type:</p>
    <ul>
      {{- range $type, $count := .Summary.CountsByType}}
      <li><code>{{$type}}</code>: {{$count}}</li>
      {{- else}}
      <li>(none)</li>
      {{- end}}
    </ul>
  </div>

  <div class="card">
    <h2>Findings</h2>
    <table>
      <thead><tr><th>Location</th><th>Masked value</th><th>Matches</th></tr></thead>
      <tbody>
        {{- range .Findings}}
        <tr>
          <td><code>{{.Location}}</code></td>
          <td><code>{{.MaskedValue}}</code></td>
          <td>{{join .MatchTypes}}</td>
        </tr>
        {{- else}}
        <tr><td colspan="3">(no findings)</td></tr>
        {{- end}}
      </tbody>
    </table>
  </div>
</body>
</html>
`))

// HTML renders the report for a human reviewer.
func (r *Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
