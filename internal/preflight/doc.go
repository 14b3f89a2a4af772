// Package preflight checks that the directories, programs, credentials, and
// services a run depends on are usable before any episode work starts.
//
// The doctor command prints every result. Checks never abort each other; a
// failing check only marks its own Result.
package preflight
