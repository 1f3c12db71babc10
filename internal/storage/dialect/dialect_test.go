package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		driver  string
		want    Type
		wantErr bool
	}{
		{"sqlite", SQLite, false},
		{"sqlite3", SQLite, false},
		{"postgres", Postgres, false},
		{"PostgreSQL", Postgres, false},
		{"mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Lookup(tt.driver)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.Name() != tt.want {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.want)
			}
		})
	}
}

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT id FROM users WHERE email = ? AND banned = ?"

	sqlite, _ := Lookup("sqlite")
	if got := sqlite.Rebind(query); got != query {
		t.Errorf("sqlite Rebind() = %q", got)
	}

	pg, _ := Lookup("postgres")
	if got, want := pg.Rebind(query), "SELECT id FROM users WHERE email = $1 AND banned = $2"; got != want {
		t.Errorf("postgres Rebind() = %q, want %q", got, want)
	}
}

func TestDialect_Paginate(t *testing.T) {
	const base = "SELECT id FROM users ORDER BY created_at"
	sqlite, _ := Lookup("sqlite")
	pg, _ := Lookup("postgres")

	tests := []struct {
		name      string
		dialect   *Dialect
		limit     int
		offset    int
		wantQuery string
		wantArgs  int
	}{
		{"sqlite none", sqlite, 0, 0, base, 0},
		{"sqlite limit", sqlite, 5, 0, base + " LIMIT ?", 1},
		{"sqlite limit offset", sqlite, 5, 2, base + " LIMIT ? OFFSET ?", 2},
		{"sqlite offset only", sqlite, 0, 2, base + " LIMIT -1 OFFSET ?", 1},
		{"postgres offset only", pg, 0, 2, base + " OFFSET ?", 1},
		{"postgres limit offset", pg, 5, 2, base + " LIMIT ? OFFSET ?", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.dialect.Paginate(base, nil, tt.limit, tt.offset)
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestDialect_Types(t *testing.T) {
	tests := []struct {
		driver   string
		boolType string
		timeType string
		init     bool
	}{
		{"sqlite", "INTEGER", "TIMESTAMP", true},
		{"postgres", "BOOLEAN", "TIMESTAMP WITH TIME ZONE", false},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, _ := Lookup(tt.driver)
			if d.DriverName() != tt.driver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.driver)
			}
			if d.BooleanType() != tt.boolType {
				t.Errorf("BooleanType() = %v, want %v", d.BooleanType(), tt.boolType)
			}
			if d.TimestampType() != tt.timeType {
				t.Errorf("TimestampType() = %v, want %v", d.TimestampType(), tt.timeType)
			}
			if got := len(d.InitStatements()) > 0; got != tt.init {
				t.Errorf("has init statements = %v, want %v", got, tt.init)
			}
		})
	}
}

func TestDialect_IsUniqueViolation(t *testing.T) {
	sqlite, _ := Lookup("sqlite")
	pg, _ := Lookup("postgres")

	tests := []struct {
		name    string
		dialect *Dialect
		err     error
		want    bool
	}{
		{"sqlite unique", sqlite, errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true},
		{"sqlite other", sqlite, errors.New("database is locked"), false},
		{"postgres message", pg, errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`), true},
		{"postgres code", pg, fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres other code", pg, &pq.Error{Code: "23503"}, false},
		{"nil", pg, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
