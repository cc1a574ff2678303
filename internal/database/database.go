// Package database opens SQL handles for the supported drivers and applies
// the schema.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) Valid() bool {
	return d == SQLite || d == Postgres
}

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Open opens and pings a database. In-memory sqlite databases are limited to
// a single connection since each connection gets its own database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect := Dialect(cfg.Driver)
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(string(dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	maxOpen := cfg.MaxOpenConns
	if dialect == SQLite && isMemoryDSN(cfg.DSN) {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return &DB{DB: db, dialect: dialect}, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Rebind rewrites ? placeholders into the dialect's form.
func (db *DB) Rebind(query string) string {
	return Rebind(db.dialect, query)
}

func Rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema(db.dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping is the health probe of the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// IsUniqueViolation reports whether err is a unique constraint violation
// from either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

func schema(d Dialect) []string {
	if d == Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS currency_exchange (
				id BIGSERIAL PRIMARY KEY,
				currency_from VARCHAR(3) NOT NULL,
				currency_to VARCHAR(3) NOT NULL,
				conversion_multiple NUMERIC(19, 6) NOT NULL,
				version BIGINT NOT NULL DEFAULT 0,
				UNIQUE (currency_from, currency_to)
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS currency_exchange (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			currency_from TEXT NOT NULL,
			currency_to TEXT NOT NULL,
			conversion_multiple TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			UNIQUE (currency_from, currency_to)
		)`,
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
