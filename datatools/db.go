package datatools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/agentcrew/logging"
)

var (
	// ErrNotReadOnly is returned for statements other than a single SELECT
	// or WITH query.
	ErrNotReadOnly = errors.New("only a single SELECT or WITH statement is allowed")

	// ErrUnknownTable is returned when a table does not exist.
	ErrUnknownTable = errors.New("unknown table")
)

var (
	identifier     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	readOnlyPrefix = regexp.MustCompile(`(?i)^(select|with)\b`)
)

// Options configures a DB.
type Options struct {
	// ReadOnly opens every connection with query_only set, so writes fail
	// inside SQLite regardless of the statement text.
	ReadOnly bool
	// MaxRows caps the rows returned by Query.
	MaxRows int
	Logger  logging.Logger
}

// DB is the analytics database.
type DB struct {
	db     *sql.DB
	opts   Options
	logger logging.Logger
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, optFns ...func(o *Options)) (*DB, error) {
	opts := Options{MaxRows: 200}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxRows <= 0 {
		opts.MaxRows = 200
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	if opts.ReadOnly {
		dsn += "&_pragma=query_only(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db: db, opts: opts, logger: opts.Logger}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Tables returns the user tables in name order.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Column describes a table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableSchema describes a table.
type TableSchema struct {
	Name    string   `json:"name"`
	DDL     string   `json:"ddl"`
	Columns []Column `json:"columns"`
}

// Describe returns the schema of table.
func (d *DB) Describe(ctx context.Context, table string) (*TableSchema, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	schema := &TableSchema{Name: table}

	err := d.db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&schema.DDL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       Column
			notNull int
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk != 0
		schema.Columns = append(schema.Columns, c)
	}

	return schema, rows.Err()
}

// QueryResult holds the rows of a query.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// Query runs a read-only query and returns at most MaxRows rows.
func (d *DB) Query(ctx context.Context, query string) (*QueryResult, error) {
	stmt, err := readOnlyStatement(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	res := &QueryResult{Columns: cols, Rows: [][]any{}}

	for rows.Next() {
		if len(res.Rows) == d.opts.MaxRows {
			res.Truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		res.Rows = append(res.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	res.RowCount = len(res.Rows)

	d.logger.Debug("datatools.query", "rows", res.RowCount, "truncated", res.Truncated, "duration_ms", time.Since(start).Milliseconds())

	return res, nil
}

// readOnlyStatement accepts a single SELECT or WITH statement, with an
// optional trailing semicolon.
func readOnlyStatement(query string) (string, error) {
	stmt := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
	if stmt == "" {
		return "", fmt.Errorf("%w: query is empty", ErrNotReadOnly)
	}

	if strings.Contains(stmt, ";") {
		return "", ErrNotReadOnly
	}

	if !readOnlyPrefix.MatchString(stmt) {
		return "", ErrNotReadOnly
	}

	return stmt, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
