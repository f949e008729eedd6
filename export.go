package main

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportCSV renders records as CSV with a header row in canonical column
// order.
func ExportCSV(records []CodingRecord) (string, error) {
	cols := Columns()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return "", err
	}
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, name := range cols {
			row[i] = rec[name]
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExportJSONRecords renders records as a JSON array of field mappings in
// insertion order.
func ExportJSONRecords(records []CodingRecord) ([]byte, error) {
	out := make([]map[string]string, len(records))
	for i, rec := range records {
		out[i] = rec
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteExportFiles writes the full coded dataset to <dir>/<project>_<date>.csv
// and .json and returns both paths.
func WriteExportFiles(db *sql.DB, outputDir, project string, now time.Time) (string, string, error) {
	records, err := GetCodedRecords(db)
	if err != nil {
		return "", "", fmt.Errorf("loading coded records: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", "", err
	}

	base := fmt.Sprintf("%s_%s", sanitizeFilename(project), now.Format("20060102"))

	csvContent, err := ExportCSV(records)
	if err != nil {
		return "", "", fmt.Errorf("rendering csv: %w", err)
	}
	csvPath := filepath.Join(outputDir, base+".csv")
	if err := os.WriteFile(csvPath, []byte(csvContent), 0644); err != nil {
		return "", "", err
	}

	jsonContent, err := ExportJSONRecords(records)
	if err != nil {
		return "", "", fmt.Errorf("rendering json: %w", err)
	}
	jsonPath := filepath.Join(outputDir, base+".json")
	if err := os.WriteFile(jsonPath, jsonContent, 0644); err != nil {
		return "", "", err
	}

	return csvPath, jsonPath, nil
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(s)
}
