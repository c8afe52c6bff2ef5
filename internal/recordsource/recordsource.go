// Package recordsource reads notice rows from extracted payload databases.
package recordsource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	_ "modernc.org/sqlite"              // SQLite driver
)

// Supported driver names.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// NoticeQuery is the only projection the aggregator needs.
const NoticeQuery = "SELECT adm, ntf_rsn, ntc_type FROM notice"

// Row is one notice record. Any column may be NULL.
type Row struct {
	Adm     sql.NullString
	NtfRsn  sql.NullString
	NtcType sql.NullString
}

// Source streams the notice rows of one payload file.
type Source interface {
	Scan(ctx context.Context, fn func(Row) error) error
	Close() error
}

// Opener opens the payload at path.
type Opener func(path string) (Source, error)

// NewOpener returns an Opener for the named driver.
func NewOpener(driver string) (Opener, error) {
	switch driver {
	case DriverSQLite, DriverDuckDB:
		return func(path string) (Source, error) { return Open(driver, path) }, nil
	default:
		return nil, fmt.Errorf("unknown record driver %q", driver)
	}
}

// Open opens path read-only with the given driver and checks it is reachable.
func Open(driver, path string) (Source, error) {
	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = "file:" + path + "?mode=ro"
	case DriverDuckDB:
		dsn = path + "?access_mode=READ_ONLY"
	default:
		return nil, fmt.Errorf("unknown record driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", path, driver, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s (%s): %w", path, driver, err)
	}
	return &dbSource{db: db, path: path}, nil
}

type dbSource struct {
	db   *sql.DB
	path string
}

// Scan runs NoticeQuery and calls fn for every row. An error from fn stops the scan.
func (s *dbSource) Scan(ctx context.Context, fn func(Row) error) error {
	rows, err := s.db.QueryContext(ctx, NoticeQuery)
	if err != nil {
		return fmt.Errorf("query %s: %w", s.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Adm, &r.NtfRsn, &r.NtcType); err != nil {
			return fmt.Errorf("scan row in %s: %w", s.path, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read rows in %s: %w", s.path, err)
	}
	return nil
}

func (s *dbSource) Close() error { return s.db.Close() }
