// Package links pulls hyperlinks out of episode descriptions and enriches
// them with a short description of the page they point to.
//
// Extraction is deterministic: the same description always yields the same
// ordered, de-duplicated link list. Enrichment drains a global queue of
// unenriched links a few at a time and always marks each link it visits,
// falling back to a fixed description when the page cannot be fetched.
package links
