// Package acquire resolves the episode a run works on.
//
// A run names either an existing episode ID or a source URL. URLs are reduced
// to their video ID so a second run on the same URL reuses the stored episode
// without downloading again. Only a new source triggers the download
// collaborator, and the resulting episode row is written exactly once.
package acquire
