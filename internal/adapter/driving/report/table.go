// Package report renders a CollectionReport for people: a console table and
// markdown or HTML files.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

// WriteTable prints one row per input with its outcome, followed by totals.
func WriteTable(w io.Writer, r model.CollectionReport) {
	runs, jobs := r.Totals()

	fmt.Fprintln(w)
	bold.Fprintf(w, "Collection pass %s\n", r.PassID)
	fmt.Fprintf(w, "Duration: %s\n\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Repository", "Outcome", "Runs", "Jobs", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, s := range r.Succeeded {
		table.Append([]string{
			s.Repository.FullName(),
			green.Sprint("collected"),
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Jobs),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	for _, f := range r.Failed {
		name := f.Key
		if !f.Repository.IsZero() {
			name = f.Repository.FullName()
		}
		table.Append([]string{name, red.Sprint(string(f.Kind)), "-", "-", truncate(f.Message, 80)})
	}
	for _, ref := range r.NotAttempted {
		table.Append([]string{ref.FullName(), yellow.Sprint("not attempted"), "-", "-", ""})
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d/%d ok", len(r.Succeeded), inputs(r)), strconv.Itoa(runs), strconv.Itoa(jobs), ""})
	table.Render()
}

func inputs(r model.CollectionReport) int {
	return len(r.Succeeded) + len(r.Failed) + len(r.NotAttempted)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
