// Package config loads, normalizes, and validates buildvault configuration.
//
// It supplies defaults, expands user paths, reads TOML files, and honours
// environment fallbacks such as OPENAI_API_KEY and ASSEMBLYAI_API_KEY. The
// Config type hands each collaborator its own settings struct so no other
// package reads the environment.
package config
