// Package dialect describes the differences between the SQL backends the
// account store runs on.
package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Type names a supported backend.
type Type string

const (
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

// Dialect holds the per-backend details used when building queries and the
// schema.
type Dialect struct {
	typ       Type
	bindType  int
	boolType  string
	timeType  string
	noLimit   string
	initStmts []string
	isUnique  func(error) bool
}

var dialects = map[Type]*Dialect{
	SQLite: {
		typ:      SQLite,
		bindType: sqlx.QUESTION,
		boolType: "INTEGER",
		timeType: "TIMESTAMP",
		// SQLite only accepts OFFSET after a LIMIT clause.
		noLimit: " LIMIT -1",
		initStmts: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		},
		isUnique: func(err error) bool {
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		},
	},
	Postgres: {
		typ:      Postgres,
		bindType: sqlx.DOLLAR,
		boolType: "BOOLEAN",
		timeType: "TIMESTAMP WITH TIME ZONE",
		isUnique: func(err error) bool {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				return pqErr.Code == "23505"
			}
			return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
		},
	},
}

// Lookup returns the dialect for a driver name. Common aliases are accepted.
func Lookup(driver string) (*Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return dialects[SQLite], nil
	case "postgres", "postgresql", "pq":
		return dialects[Postgres], nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Name returns the backend name, which is also its database/sql driver name.
func (d *Dialect) Name() Type { return d.typ }

// DriverName returns the database/sql driver to open.
func (d *Dialect) DriverName() string { return string(d.typ) }

// Rebind rewrites ? placeholders into the backend's bind style.
func (d *Dialect) Rebind(query string) string { return sqlx.Rebind(d.bindType, query) }

// BooleanType is the column type for flags.
func (d *Dialect) BooleanType() string { return d.boolType }

// TimestampType is the column type for timestamps.
func (d *Dialect) TimestampType() string { return d.timeType }

// Paginate appends LIMIT and OFFSET clauses to query. A limit of zero or
// less means no limit; the offset applies either way.
func (d *Dialect) Paginate(query string, args []any, limit, offset int) (string, []any) {
	switch {
	case limit > 0:
		query += " LIMIT ?"
		args = append(args, limit)
	case offset > 0:
		query += d.noLimit
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

// InitStatements run once per connection pool before the schema is created.
func (d *Dialect) InitStatements() []string { return d.initStmts }

// IsUniqueViolation reports whether err is a unique constraint violation.
func (d *Dialect) IsUniqueViolation(err error) bool {
	return err != nil && d.isUnique(err)
}
