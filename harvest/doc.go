// Package harvest enriches artifact records from an external catalog source.
//
// A bounded worker pool fetches per-item pages through a rate limiter,
// classifies each response, extracts tracked fields with a validated rule
// table, and merges them additively: a field only ever moves from empty to
// populated, which makes runs idempotent and safe to repeat.
package harvest
