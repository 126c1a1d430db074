package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of the backing store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// Store is the single storage handle shared by every repository and the
// route cache. Queries are written with "?" placeholders and rebound per dialect.
type Store struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to driver ("sqlite" or "pgx") at dsn and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("openDB: dsn is empty")
	}

	switch Dialect(driver) {
	case SQLite:
		return openSQLite(ctx, dsn)
	case Postgres:
		return openPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("openDB: unsupported driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("openDB: create directory for %q: %w", path, err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", path, err)
	}

	// SQLite allows one writer; a single connection keeps SQLITE_BUSY out of
	// concurrent cache lookups.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", path, err)
	}

	return &Store{DB: db, Dialect: SQLite}, nil
}

func openPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return &Store{DB: db, Dialect: Postgres}, nil
}

// Rebind rewrites "?" placeholders to "$1, $2, ..." for Postgres. Quoted
// literals are left untouched.
func (s *Store) Rebind(q string) string {
	if s.Dialect != Postgres {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 16)

	n := 0
	inQuote := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// Expand substitutes the dialect-specific column types used in schema
// statements: {{id}} for an auto-increment primary key and {{real}} for a
// double precision column.
func (s *Store) Expand(ddl string) string {
	idType, floatType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.Dialect == Postgres {
		idType, floatType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	return strings.NewReplacer("{{id}}", idType, "{{real}}", floatType).Replace(ddl)
}

// Placeholders returns "?, ?, ..." with n entries for IN lists.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
