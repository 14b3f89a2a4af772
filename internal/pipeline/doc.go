// Package pipeline runs the episode stages in order for one source.
//
// A run acquires the episode, then transcribes, groups, summarizes, extracts
// insights, reconciles products, extracts links, and enriches pending links.
// Only a failed acquisition stops the run; every later stage reports its own
// outcome and the run continues on whatever data the earlier stages left.
// Runs take a per-episode advisory lock so two processes on the same host
// never interleave writes for one episode.
package pipeline
