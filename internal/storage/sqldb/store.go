package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
	"github.com/tjfontaine/movegate/internal/storage/dialect"
)

// Store is a SQL implementation of UserStore and AuditStore that supports
// multiple database dialects.
type Store struct {
	db      *sqlx.DB
	dialect *dialect.Dialect
}

var (
	_ ports.UserStore  = (*Store)(nil)
	_ ports.AuditStore = (*Store)(nil)
)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.Lookup(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
id TEXT PRIMARY KEY,
email TEXT NOT NULL UNIQUE,
name TEXT NOT NULL DEFAULT '',
password_hash TEXT NOT NULL DEFAULT '',
role TEXT NOT NULL,
plan TEXT NOT NULL,
banned %s NOT NULL DEFAULT FALSE,
created_at %s NOT NULL,
updated_at %s NOT NULL
)`, s.dialect.BooleanType(), s.dialect.TimestampType(), s.dialect.TimestampType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS invocations (
id TEXT PRIMARY KEY,
action_name TEXT NOT NULL,
outcome TEXT NOT NULL,
error_kind TEXT NOT NULL DEFAULT '',
redirect_to TEXT NOT NULL DEFAULT '',
duration_ns BIGINT NOT NULL DEFAULT 0,
created_at %s NOT NULL
)`, s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_action ON invocations(action_name)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Plan         string    `db:"plan"`
	Banned       bool      `db:"banned"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		Plan:         domain.Plan(r.Plan),
		Banned:       r.Banned,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = `id, email, name, password_hash, role, plan, banned, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	query := s.dialect.Rebind(`INSERT INTO users (` + userColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		string(user.Role), string(user.Plan), user.Banned,
		user.CreatedAt, user.UpdatedAt)
	if s.dialect.IsUniqueViolation(err) {
		return &domain.UserAlreadyRegisteredError{Email: user.Email}
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.dialect.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context, opts ports.ListOptions) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, email ASC`
	args := []any{}
	query, args = s.dialect.Paginate(query, args, opts.Limit, opts.Offset)

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toDomain()
	}
	return users, nil
}

func (s *Store) SetBanned(ctx context.Context, id string, banned bool) error {
	return s.updateUser(ctx, `UPDATE users SET banned = ?, updated_at = ? WHERE id = ?`, banned, time.Now().UTC(), id)
}

func (s *Store) SetPlan(ctx context.Context, id string, plan domain.Plan) error {
	return s.updateUser(ctx, `UPDATE users SET plan = ?, updated_at = ? WHERE id = ?`, string(plan), time.Now().UTC(), id)
}

func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type invocationRow struct {
	ID         string    `db:"id"`
	ActionName string    `db:"action_name"`
	Outcome    string    `db:"outcome"`
	ErrorKind  string    `db:"error_kind"`
	RedirectTo string    `db:"redirect_to"`
	DurationNs int64     `db:"duration_ns"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s *Store) RecordInvocation(ctx context.Context, rec *domain.InvocationRecord) error {
	query := s.dialect.Rebind(`INSERT INTO invocations (id, action_name, outcome, error_kind, redirect_to, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ActionName, string(rec.Outcome), string(rec.ErrorKind),
		rec.RedirectTo, rec.Duration.Nanoseconds(), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

func (s *Store) ListInvocations(ctx context.Context, opts ports.InvocationListOptions) ([]*domain.InvocationRecord, error) {
	var (
		conds []string
		args  []any
	)
	if opts.ActionName != "" {
		conds = append(conds, "action_name = ?")
		args = append(args, opts.ActionName)
	}
	if opts.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(opts.Outcome))
	}

	query := `SELECT id, action_name, outcome, error_kind, redirect_to, duration_ns, created_at FROM invocations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query, args = s.dialect.Paginate(query, args, opts.Limit, opts.Offset)

	var rows []invocationRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}

	records := make([]*domain.InvocationRecord, len(rows))
	for i, r := range rows {
		records[i] = &domain.InvocationRecord{
			ID:         r.ID,
			ActionName: r.ActionName,
			Outcome:    domain.Outcome(r.Outcome),
			ErrorKind:  domain.ErrorKind(r.ErrorKind),
			RedirectTo: r.RedirectTo,
			Duration:   time.Duration(r.DurationNs),
			CreatedAt:  r.CreatedAt,
		}
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
