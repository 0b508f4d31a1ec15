// Package embedgen turns artifact enrichment data into searchable vectors.
//
// The summary writer condenses an artifact's populated fields into a short
// embedding summary via a text-generation provider. The generator then embeds
// pending summaries with retry and backoff, normalizes the vectors for cosine
// similarity, and records a content hash so stale summaries can be detected.
// Both phases are resumable: selection predicates only match unfinished rows.
package embedgen
