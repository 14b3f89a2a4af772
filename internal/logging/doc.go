// Package logging assembles the slog loggers used by buildvault.
//
// It owns the console and JSON handlers, routes output to the terminal and an
// optional log file, and exposes context helpers so stage code tags each line
// with the episode ID, stage, and run ID without threading them by hand.
package logging
