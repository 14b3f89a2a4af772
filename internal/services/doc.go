// Package services defines shared utilities consumed by the pipeline stages
// and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp episode IDs, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified with errors.Is (not found, download, completion, parse, ...).
//
// Collaborator clients live in subpackages (llm, assemblyai, ytdlp).
package services
