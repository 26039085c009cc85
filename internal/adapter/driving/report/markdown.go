package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// Markdown renders the report as a GitHub-flavored markdown document.
func Markdown(r model.CollectionReport) string {
	var b strings.Builder
	runs, jobs := r.Totals()

	fmt.Fprintf(&b, "# WorkKnow collection report\n\n")
	fmt.Fprintf(&b, "- Pass: `%s`\n", r.PassID)
	fmt.Fprintf(&b, "- Started: %s\n", formatStamp(r.StartedAt))
	fmt.Fprintf(&b, "- Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "- Repositories: %d succeeded, %d failed, %d not attempted\n",
		len(r.Succeeded), len(r.Failed), len(r.NotAttempted))
	fmt.Fprintf(&b, "- Runs: %d, jobs: %d\n", runs, jobs)

	if len(r.Succeeded) > 0 {
		b.WriteString("\n## Collected\n\n")
		b.WriteString("| Repository | Runs | Jobs | Pages | Duration |\n")
		b.WriteString("|---|---:|---:|---:|---:|\n")
		for _, s := range r.Succeeded {
			fmt.Fprintf(&b, "| [%s](%s) | %d | %d | %d | %s |\n",
				escapeCell(s.Repository.FullName()), s.Repository.CanonicalURL,
				s.Runs, s.Jobs, s.Pages, s.Duration.Round(time.Millisecond))
		}
	}

	if len(r.Failed) > 0 {
		b.WriteString("\n## Failed\n\n")
		b.WriteString("| Input | Kind | Error |\n")
		b.WriteString("|---|---|---|\n")
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "| %s | `%s` | %s |\n", escapeCell(f.Key), f.Kind, escapeCell(f.Message))
		}
	}

	if len(r.NotAttempted) > 0 {
		b.WriteString("\n## Not attempted\n\n")
		for _, ref := range r.NotAttempted {
			fmt.Fprintf(&b, "- %s\n", escapeCell(ref.FullName()))
		}
	}

	return b.String()
}

// HTML renders the report as sanitized HTML.
func HTML(r model.CollectionReport) string {
	return RenderMarkdown(Markdown(r))
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// WriteFile saves the report to path. Files ending in .html or .htm get a
// standalone HTML page; anything else gets markdown.
func WriteFile(path string, r model.CollectionReport) error {
	var body string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		body = "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>WorkKnow report</title></head><body>\n" +
			HTML(r) + "</body></html>\n"
	default:
		body = Markdown(r)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// escapeCell keeps user-supplied text from breaking a table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
