// Package stage holds the types every pipeline stage reports through.
//
// Stages never return bare errors to the runner. They return a Result whose
// Outcome says whether the stage did work, skipped because prior output
// exists, degraded because a capability was missing, or failed. Only the
// acquire stage's failure stops a run; everything else is recorded and the
// next stage proceeds.
package stage
