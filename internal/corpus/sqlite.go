package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads the incident table from a SQLite database.
type SQLiteSource struct {
	db    *sql.DB
	dsn   string
	table string
	owned bool
}

// OpenSQLiteSource opens dsn with the modernc driver. Close releases the handle.
func OpenSQLiteSource(dsn, table string) (*SQLiteSource, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteSource{db: db, dsn: dsn, table: table, owned: true}, nil
}

// NewSQLiteSource wraps an existing handle; the caller keeps ownership.
func NewSQLiteSource(db *sql.DB, table string) (*SQLiteSource, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLiteSource{db: db, dsn: "sqlite", table: table}, nil
}

// Name identifies the source as dsn#table in load errors and logs.
func (s *SQLiteSource) Name() string { return s.dsn + "#" + s.table }

// Columns returns the table column names without reading any rows.
func (s *SQLiteSource) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT 0`, s.table))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()
	return rows.Columns()
}

// Rows reads every row as text, in rowid order.
func (s *SQLiteSource) Rows(ctx context.Context) ([]map[string]string, error) {
	q := fmt.Sprintf(`SELECT
		CAST(%s AS TEXT), COALESCE(CAST(%s AS TEXT), ''), COALESCE(%s, ''),
		COALESCE(%s, ''), COALESCE(%s, ''), COALESCE(%s, '')
		FROM "%s" ORDER BY rowid`,
		ColID, ColDate, ColDepartment, ColModel, ColSubAssembly, ColDescription, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var id sql.NullString
		var date, dept, model, sub, desc string
		if err := rows.Scan(&id, &date, &dept, &model, &sub, &desc); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, map[string]string{
			ColID:          id.String,
			ColDate:        date,
			ColDepartment:  dept,
			ColModel:       model,
			ColSubAssembly: sub,
			ColDescription: desc,
		})
	}
	return out, rows.Err()
}

// Close releases the database handle when the source opened it.
func (s *SQLiteSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
