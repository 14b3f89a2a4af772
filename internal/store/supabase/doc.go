// Package supabase implements store.Store over a Supabase project's REST
// (PostgREST) interface using the tables podcast_episodes, segments,
// insights, products and episode_links.
//
// PostgREST calls do not accept a context; cancellation is observed between
// calls only. The schema is managed in the Supabase project, so the
// configured schema version is trusted as declared.
package supabase
