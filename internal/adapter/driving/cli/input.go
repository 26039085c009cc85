package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// urlColumns are the header names recognized as the repository column.
var urlColumns = []string{"url", "repo_url", "repository", "repo"}

// ReadRepositoryCSV returns the repository identifiers listed in a CSV file,
// one per row. When the first row names a url, repo_url, repository or repo
// column it is treated as a header and that column is read; otherwise the
// first column is. Blank rows and rows starting with '#' are skipped.
func ReadRepositoryCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open repository list: %w", err)
	}
	defer f.Close()

	ids, err := parseRepositoryCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read repository list %s: %w", path, err)
	}
	return ids, nil
}

func parseRepositoryCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var ids []string
	column := 0
	first := true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			if idx := headerColumn(record); idx >= 0 {
				column = idx
				continue
			}
		}

		if column >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[column]); v != "" {
			ids = append(ids, v)
		}
	}

	return ids, nil
}

func headerColumn(record []string) int {
	for i, cell := range record {
		if slices.Contains(urlColumns, strings.ToLower(strings.TrimSpace(cell))) {
			return i
		}
	}
	return -1
}
