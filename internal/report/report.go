// Package report renders run summaries for the terminal or for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/FranksOps/quill/internal/blog"
	"github.com/FranksOps/quill/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Format selects how a summary is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a flag value onto a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

var rule = strings.Repeat("=", 50)

var funcs = template.FuncMap{"rule": func() string { return rule }}

var updateTmpl = template.Must(template.New("update").Funcs(funcs).Parse(`
{{rule}}
Update Summary:
  Successfully updated: {{.Succeeded}}
  Skipped (already updated): {{.Skipped}}
  Failed/Errors: {{.Failed}}
  Total processed: {{.Total}}
{{- range .Results}}{{if eq .State "failed"}}
  - {{.Title}} ({{.ArticleID}}): {{.Stage}}: {{.Reason}}
{{- end}}{{end}}
{{rule}}
`))

var ingestTmpl = template.Must(template.New("ingest").Funcs(funcs).Parse(`
{{rule}}
Ingest Summary:
  Links discovered: {{.Discovered}}
  Saved: {{.Saved}}
  Skipped (invalid): {{.Invalid}}
  Skipped (duplicate): {{.Duplicate}}
  Failed: {{.Failed}}
{{rule}}
`))

// WriteText writes the human-readable update summary. Failed articles are
// listed under the totals with the stage they stopped in.
func WriteText(w io.Writer, summary *pipeline.Summary) error {
	if err := updateTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("render update summary: %w", err)
	}
	return nil
}

// WriteIngestText writes the human-readable ingestion summary.
func WriteIngestText(w io.Writer, summary blog.IngestSummary) error {
	if err := ingestTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("render ingest summary: %w", err)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// WriteYAML writes v as a YAML document.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return nil
}

// Write dispatches on f. Text output needs a *pipeline.Summary or a
// blog.IngestSummary.
func Write(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, v)
	case FormatYAML:
		return WriteYAML(w, v)
	}
	switch s := v.(type) {
	case *pipeline.Summary:
		return WriteText(w, s)
	case blog.IngestSummary:
		return WriteIngestText(w, s)
	default:
		return fmt.Errorf("no text rendering for %T", v)
	}
}
