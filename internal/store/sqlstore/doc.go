// Package sqlstore implements store.Store on database/sql. SQLite (modernc)
// is the default local backend; Postgres is reached through the pgx stdlib
// driver with the same statements rebound to numbered placeholders.
//
// The schema is created from embedded migrations, applied only up to the
// configured schema version so optional columns (segment groups) exist
// exactly when the capability descriptor says they do.
package sqlstore
