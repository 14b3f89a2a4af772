// Package logs reads back the JSON run log that buildvault writes into the
// configured log directory.
//
// Tail returns the last matching records with bounded memory, and Follow
// polls for records appended after an offset. Filters select one run, one
// episode, or one stage so a single pipeline run can be inspected after the
// fact.
package logs
