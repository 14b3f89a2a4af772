// Package main hosts the buildvault CLI.
//
// The cobra command tree loads configuration once, opens the datastore, wires
// the download, transcription, and completion collaborators, and hands them
// to the pipeline runner. Commands print stage lines and aggregate tables for
// people, or the full run report with --json.
package main
