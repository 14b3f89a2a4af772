// Package store defines the persisted data model for the pipeline (episodes,
// segments, insights, products, links), the typed datastore interfaces every
// stage depends on, and the schema capability descriptor that tells stages
// which optional columns the configured schema carries.
//
// Backends live in subpackages: sqlstore (SQLite and Postgres over
// database/sql) and supabase (PostgREST).
package store
