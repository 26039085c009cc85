package csvexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// CombineSummary reports what Combine merged.
type CombineSummary struct {
	Repositories int // Workflows files with at least one run.
	Runs         int
	Jobs         int
	Commits      int
}

// Combine merges every per-repository Workflows, Jobs and Commits file in dir
// into the matching All-*.csv file and writes All-Counts.csv with the number
// of runs per repository. Existing All-* files are not read and are replaced.
func Combine(dir string) (CombineSummary, error) {
	var summary CombineSummary

	labels := []struct {
		label  string
		header []string
		total  *int
	}{
		{LabelWorkflows, workflowHeader, &summary.Runs},
		{LabelJobs, jobHeader, &summary.Jobs},
		{LabelCommits, commitHeader, &summary.Commits},
	}

	var counts [][]string

	for _, l := range labels {
		files, err := perRepositoryFiles(dir, l.label)
		if err != nil {
			return summary, err
		}

		header := l.header
		var rows [][]string

		for i, path := range files {
			fileHeader, fileRows, err := readCSV(path)
			if err != nil {
				return summary, err
			}
			if i == 0 && fileHeader != nil {
				header = fileHeader
			} else if fileHeader != nil && !slices.Equal(header, fileHeader) {
				return summary, fmt.Errorf("%s: header differs from %s", path, files[0])
			}
			rows = append(rows, fileRows...)

			if l.label == LabelWorkflows && len(fileRows) > 0 {
				counts = append(counts, countFromRows(fileHeader, fileRows))
			}
		}

		*l.total = len(rows)
		if err := writeCSV(filepath.Join(dir, fileName(AllPrefix, l.label)), header, rows); err != nil {
			return summary, err
		}

		slog.Debug("combined csv files", "label", l.label, "files", len(files), "rows", len(rows))
	}

	summary.Repositories = len(counts)
	if err := writeCSV(filepath.Join(dir, fileName(AllPrefix, LabelCounts)), countHeader, counts); err != nil {
		return summary, err
	}

	return summary, nil
}

// perRepositoryFiles lists dir/*-<label>.csv in sorted order, without All-*.
func perRepositoryFiles(dir, label string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("results directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*-"+label+".csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s files: %w", label, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), AllPrefix+"-") {
			continue
		}
		files = append(files, m)
	}
	slices.Sort(files)
	return files, nil
}

// readCSV returns the header and data rows of path. An empty file has a nil
// header.
func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return header, rows, nil
}

// countFromRows builds an All-Counts row from one repository's workflow rows.
// Identity columns come from the first row.
func countFromRows(header []string, rows [][]string) []string {
	first := rows[0]
	cell := func(name string) string {
		i := slices.Index(header, name)
		if i < 0 || i >= len(first) {
			return ""
		}
		return first[i]
	}
	return []string{
		cell("organization"),
		cell("repo"),
		cell("repo_url"),
		cell("actions_url"),
		strconv.Itoa(len(rows)),
	}
}
