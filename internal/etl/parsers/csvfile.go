package parsers

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"mongogen/internal/etl"
)

// ── CSV Parser ──────────────────────────────────────────────
// The first row names the fields; every following row is one record.
// All records of a file belong to the group named after the file.

type csvParser struct{}

func init() { etl.RegisterParser(&csvParser{}) }

func (p *csvParser) Extensions() []string { return []string{".csv"} }

func (p *csvParser) Parse(content, fileName string) ([]etl.Record, error) {
	reader := csv.NewReader(strings.NewReader(content))
	// Rows may be shorter or longer than the header.
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &etl.ParseError{File: fileName, Err: fmt.Errorf("parse csv: %w", err)}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	named := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		named[headers[i]] = true
	}

	group := TableName(fileName)
	records := make([]etl.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := etl.NewRecord(group)
		for j, v := range row {
			rec.Set(columnName(headers, named, j), v)
		}
		records = append(records, rec)
	}
	return records, nil
}

// columnName returns the header of column j, or field<N> for cells past
// the header or under a blank header cell. A generated name never reuses
// a header: it is prefixed with underscores until it is free.
func columnName(headers []string, named map[string]bool, j int) string {
	if j < len(headers) && headers[j] != "" {
		return headers[j]
	}
	name := "field" + strconv.Itoa(j+1)
	for named[name] {
		name = "_" + name
	}
	return name
}

// TableName derives a group name from a file name: the base name
// without its extension.
func TableName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
