// Package source reads tabular files into datasets and writes results back
// out. It is plumbing for the CLI and web layers; the core pipeline accepts
// row sequences regardless of how they were produced and never imports this
// package.
package source

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/linkage"
)

// Load reads a dataset from a .csv or .json file, dispatching on extension.
func Load(path string) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".json":
		return LoadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported dataset file %q (want .csv or .json)", path)
	}
}

// LoadCSV reads a CSV file whose first record is the header. Cell values
// are inferred: numbers become float64, true/false become bool, everything
// else stays a string.
func LoadCSV(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return &dataset.Dataset{Name: datasetName(path)}, nil
	}

	header := records[0]
	ds := &dataset.Dataset{
		Name:    datasetName(path),
		Columns: header,
		Rows:    make([]dataset.Row, 0, len(records)-1),
	}

	for _, record := range records[1:] {
		row := make(dataset.Row, len(header))
		for i, col := range header {
			if i >= len(record) {
				break
			}
			row[col] = inferValue(record[i])
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// LoadJSON reads a JSON array of objects.
func LoadJSON(path string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var rows []dataset.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &dataset.Dataset{
		Name:    datasetName(path),
		Columns: dataset.ColumnUnion(rows),
		Rows:    rows,
	}, nil
}

// WriteMatchCSV exports joined records as CSV: the union of data columns in
// sorted order, then matchStatus and matchScore.
func WriteMatchCSV(path string, records []linkage.MatchRecord) error {
	rows := make([]dataset.Row, len(records))
	for i, rec := range records {
		rows[i] = rec.Row
	}
	columns := dataset.ColumnUnion(rows)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, columns...), "matchStatus", "matchScore")
	if err := w.Write(header); err != nil {
		return err
	}

	line := make([]string, len(header))
	for _, rec := range records {
		for i, col := range columns {
			line[i] = dataset.Stringify(rec.Row[col])
		}
		line[len(columns)] = string(rec.Status)
		line[len(columns)+1] = strconv.FormatFloat(rec.Score, 'f', -1, 64)
		if err := w.Write(line); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// inferValue parses a CSV cell into its likely scalar type.
func inferValue(cell string) interface{} {
	if cell == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

func datasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
