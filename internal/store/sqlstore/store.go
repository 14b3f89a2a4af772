package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

// Dialect selects placeholder style and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options configures Open.
// DSN is a file path for SQLite or a connection string for Postgres.
type Options struct {
	Dialect       Dialect
	DSN           string
	SchemaVersion int
}

// Store implements store.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	caps    store.Capabilities
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, applies migrations up to the configured
// schema version and returns a ready store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	caps, err := store.CapabilitiesFor(opts.SchemaVersion)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "schema version", err)
	}
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "dsn required", nil)
	}

	var db *sql.DB
	switch opts.Dialect {
	case DialectSQLite, "":
		opts.Dialect = DialectSQLite
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("ensure database dir: %w", err)
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStore, "store", "open", "ping postgres", err)
		}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", fmt.Sprintf("unknown dialect %q", opts.Dialect), nil)
	}

	s := New(db, opts.Dialect, caps)
	if err := s.applyMigrations(ctx, caps.SchemaVersion); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStore, "store", "migrate", "", err)
	}
	return s, nil
}

// New wraps an existing connection without running migrations.
func New(db *sql.DB, dialect Dialect, caps store.Capabilities) *Store {
	return &Store{db: db, dialect: dialect, caps: caps}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Capabilities reports the declared schema features.
func (s *Store) Capabilities() store.Capabilities {
	return s.caps
}

// rebind converts ? placeholders to $n for Postgres. Statements in this
// package never carry literal question marks.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func storeErr(op string, err error) error {
	return services.Wrap(services.ErrStore, "store", op, "", err)
}
