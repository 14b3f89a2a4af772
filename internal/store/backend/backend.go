// Package backend opens the datastore selected in configuration.
package backend

import (
	"context"
	"fmt"

	"buildvault/internal/config"
	"buildvault/internal/services"
	"buildvault/internal/store"
	"buildvault/internal/store/sqlstore"
	"buildvault/internal/store/supabase"
)

// Open returns the configured store. SQL backends are migrated up to the
// configured schema version before returning.
func Open(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return openSQL(ctx, sqlstore.DialectSQLite, cfg.SQLitePath, cfg.SchemaVersion)
	case config.BackendPostgres:
		return openSQL(ctx, sqlstore.DialectPostgres, cfg.PostgresDSN, cfg.SchemaVersion)
	case config.BackendSupabase:
		st, err := supabase.Open(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SchemaVersion)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "store", "open",
			fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
}

func openSQL(ctx context.Context, dialect sqlstore.Dialect, dsn string, version int) (store.Store, error) {
	st, err := sqlstore.Open(ctx, sqlstore.Options{Dialect: dialect, DSN: dsn, SchemaVersion: version})
	if err != nil {
		return nil, err
	}
	return st, nil
}
