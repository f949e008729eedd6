package main

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the session database and creates the schema. The coded_records
// table carries one TEXT column per registered codebook field, generated from
// the registry so the store can never drift from the schema definition.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	var recordCols strings.Builder
	for _, name := range Columns() {
		recordCols.WriteString(fmt.Sprintf("\t\t%s TEXT NOT NULL DEFAULT '',\n", name))
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS coded_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
%s		coded_by    TEXT NOT NULL DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_coded_records_created_at ON coded_records(created_at);

	CREATE TABLE IF NOT EXISTS draft_history (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		article_sha   TEXT NOT NULL,
		provider      TEXT NOT NULL DEFAULT '',
		model         TEXT NOT NULL DEFAULT '',
		rows_produced INTEGER NOT NULL DEFAULT 0,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		requested_by  TEXT NOT NULL DEFAULT '',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_draft_history_article ON draft_history(article_sha);
	`, recordCols.String())

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

// InsertCodedRecord appends one complete, valid record to the coded dataset.
// Rows are never updated in place after acceptance.
func InsertCodedRecord(db *sql.DB, rec CodingRecord, codedBy string) error {
	cols := Columns()
	names := make([]string, 0, len(cols)+1)
	marks := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, name := range cols {
		names = append(names, name)
		marks = append(marks, "?")
		args = append(args, rec[name])
	}
	names = append(names, "coded_by")
	marks = append(marks, "?")
	args = append(args, codedBy)

	query := fmt.Sprintf("INSERT INTO coded_records (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))
	_, err := db.Exec(query, args...)
	return err
}

// GetCodedRecords returns every accepted record in insertion order, fields in
// canonical column order.
func GetCodedRecords(db *sql.DB) ([]CodingRecord, error) {
	cols := Columns()
	query := fmt.Sprintf("SELECT %s FROM coded_records ORDER BY id", strings.Join(cols, ", "))
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CodingRecord
	for rows.Next() {
		values := make([]string, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make(CodingRecord, len(cols))
		for i, name := range cols {
			rec[name] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func CountCodedRecords(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM coded_records").Scan(&count)
	return count, err
}

// ClearCodedRecords resets the session dataset to empty.
func ClearCodedRecords(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM coded_records")
	return err
}

// --- Draft audit trail ---

type DraftEvent struct {
	ID           int64
	ArticleSHA   string
	Provider     string
	Model        string
	RowsProduced int
	InputTokens  int64
	OutputTokens int64
	RequestedBy  string
	CreatedAt    time.Time
}

func InsertDraftEvent(db *sql.DB, ev DraftEvent) error {
	_, err := db.Exec(
		`INSERT INTO draft_history (article_sha, provider, model, rows_produced, input_tokens, output_tokens, requested_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ArticleSHA, ev.Provider, ev.Model, ev.RowsProduced,
		ev.InputTokens, ev.OutputTokens, ev.RequestedBy,
	)
	return err
}

type DraftStats struct {
	TotalDrafts  int
	TotalRows    int
	InputTokens  int64
	OutputTokens int64
}

func GetDraftStats(db *sql.DB, since time.Time) (DraftStats, error) {
	var s DraftStats
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(rows_produced), 0),
		        COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM draft_history WHERE created_at >= ?`,
		since,
	).Scan(&s.TotalDrafts, &s.TotalRows, &s.InputTokens, &s.OutputTokens)
	return s, err
}
