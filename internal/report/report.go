// Package report renders a status summary of the news pipeline: provider
// quota usage, run counters and recently posted articles.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/yolubot/boardnews/internal/pipeline"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/internal/storage"
)

// SourceCount is the number of posted articles from one source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Summary contains aggregated status for one point in time.
type Summary struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	Usage         serp.Usage        `json:"usage"`
	Pipeline      pipeline.Stats    `json:"pipeline"`
	Recent        []*storage.Posted `json:"recent"`
	PostsBySource []SourceCount     `json:"posts_by_source"`
	Health        map[string]string `json:"health,omitempty"`
}

// GenerateSummary combines router usage, pipeline counters and recent
// ledger entries. health maps provider names to probe errors; nil values
// are reported as "ok".
func GenerateSummary(now time.Time, usage serp.Usage, stats pipeline.Stats, recent []*storage.Posted, health map[string]error) Summary {
	s := Summary{
		GeneratedAt: now.UTC(),
		Usage:       usage,
		Pipeline:    stats,
		Recent:      recent,
	}

	counts := make(map[string]int)
	for _, p := range recent {
		counts[p.Source]++
	}
	for src, n := range counts {
		s.PostsBySource = append(s.PostsBySource, SourceCount{Source: src, Count: n})
	}
	sort.Slice(s.PostsBySource, func(i, j int) bool {
		a, b := s.PostsBySource[i], s.PostsBySource[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Source < b.Source
	})

	if health != nil {
		s.Health = make(map[string]string, len(health))
		for name, err := range health {
			if err != nil {
				s.Health[name] = err.Error()
			} else {
				s.Health[name] = "ok"
			}
		}
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `Board Game News Status
----------------------
Generated:     {{.GeneratedAt.Format "2006-01-02 15:04:05"}} UTC
Quota date:    {{.Usage.ResetDate}}
Cache entries: {{.Usage.CacheSize}}

Providers:
{{- range .Usage.Providers}}
  {{printf "%-8s" .Name}} {{if .Enabled}}enabled {{else}}disabled{{end}} {{.Used}}/{{.DailyQuota}}
{{- else}}
  None
{{- end}}
{{- if .Health}}

Health:
{{- range $name, $status := .Health}}
  {{$name}}: {{$status}}
{{- end}}
{{- end}}

Runs:          {{.Pipeline.TotalRuns}} (articles {{.Pipeline.SuccessfulRuns}}, fallback {{.Pipeline.FallbackRuns}}, no news {{.Pipeline.NoNewsRuns}})
Avg duration:  {{.Pipeline.AverageDuration}}
{{- with .Pipeline.LastRun}}
Last run:      {{.StartedAt.Format "2006-01-02 15:04:05"}} {{.Trigger}} {{.Outcome}} ({{.Returned}} returned)
{{- end}}

Recent posts:
{{- range .Recent}}
  {{.PostedAt.Format "01-02 15:04"}} [{{.Source}}] {{.Title}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Board Game News Status</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Board Game News Status</h1>
  <p><strong>Generated:</strong> {{.GeneratedAt.Format "2006-01-02 15:04:05"}} UTC, quota date {{.Usage.ResetDate}}</p>

  <div class="stat-card">
    <div>Runs</div>
    <div class="stat-val">{{.Pipeline.TotalRuns}}</div>
  </div>
  <div class="stat-card">
    <div>With Articles</div>
    <div class="stat-val">{{.Pipeline.SuccessfulRuns}}</div>
  </div>
  <div class="stat-card">
    <div>Fallback</div>
    <div class="stat-val" style="color: {{if gt .Pipeline.FallbackRuns 0}}orange{{else}}green{{end}};">{{.Pipeline.FallbackRuns}}</div>
  </div>
  <div class="stat-card">
    <div>No News</div>
    <div class="stat-val">{{.Pipeline.NoNewsRuns}}</div>
  </div>

  <h3>Providers</h3>
  <table>
    <tr><th>Name</th><th>Enabled</th><th>Used</th><th>Daily Quota</th></tr>
    {{- range .Usage.Providers}}
    <tr><td>{{.Name}}</td><td>{{.Enabled}}</td><td>{{.Used}}</td><td>{{.DailyQuota}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>

  <h3>Recent Posts</h3>
  <table>
    <tr><th>Posted</th><th>Source</th><th>Title</th><th>Score</th></tr>
    {{- range .Recent}}
    <tr><td>{{.PostedAt.Format "2006-01-02 15:04"}}</td><td>{{.Source}}</td><td><a href="{{.URL}}">{{.Title}}</a></td><td>{{printf "%.1f" .CombinedScore}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>

  <h3>Posts By Source</h3>
  <table>
    <tr><th>Source</th><th>Count</th></tr>
    {{- range .PostsBySource}}
    <tr><td>{{.Source}}</td><td>{{.Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes an HTML status page. Titles and URLs come from the web
// and are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
