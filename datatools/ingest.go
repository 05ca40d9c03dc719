package datatools

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// IngestResult summarizes a CSV import.
type IngestResult struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
	Rows    int      `json:"rows"`
}

// IngestCSVFile imports the CSV file at path. An empty table name is derived
// from the file name.
func (d *DB) IngestCSVFile(ctx context.Context, path, table string) (*IngestResult, error) {
	if table == "" {
		table = TableName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	defer f.Close()

	return d.IngestCSV(ctx, f, table)
}

// IngestCSV creates table from the CSV header and inserts every row in one
// transaction. Column types are INTEGER or REAL when every non-empty value
// parses as such, TEXT otherwise. Empty values are stored as NULL.
func (d *DB) IngestCSV(ctx context.Context, r io.Reader, table string) (*IngestResult, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("ingest: invalid table name %q", table)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ingest %s: csv has no header", table)
		}
		return nil, fmt.Errorf("ingest %s: %w", table, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", table, err)
	}

	columns := make([]Column, len(header))
	for i, h := range header {
		columns[i] = Column{Name: columnName(h, i), Type: inferType(records, i)}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type
		names[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("ingest %s: create table: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", table, err)
	}
	defer stmt.Close()

	for n, rec := range records {
		args := make([]any, len(columns))
		for i := range columns {
			if i < len(rec) {
				args[i] = convert(rec[i], columns[i].Type)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("ingest %s: row %d: %w", table, n+2, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ingest %s: commit: %w", table, err)
	}

	d.logger.Info("datatools.ingest.complete", "table", table, "rows", len(records), "columns", len(columns))

	return &IngestResult{Table: table, Columns: columns, Rows: len(records)}, nil
}

// TableName turns a file name like "sales-data 2024" into "sales_data_2024".
func TableName(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}

	name := strings.Trim(sb.String(), "_")
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "t_" + name
	}

	return name
}

func columnName(h string, i int) string {
	if strings.TrimSpace(h) == "" {
		return fmt.Sprintf("column_%d", i+1)
	}
	return TableName(h)
}

func inferType(records [][]string, col int) string {
	typ := "INTEGER"
	seen := false

	for _, rec := range records {
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			continue
		}
		seen = true

		v := strings.TrimSpace(rec[col])
		if typ == "INTEGER" {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			typ = "REAL"
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "TEXT"
		}
	}

	if !seen {
		return "TEXT"
	}

	return typ
}

func convert(v, typ string) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}

	switch typ {
	case "INTEGER":
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case "REAL":
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return v
	}
}
