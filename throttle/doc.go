// Package throttle provides the pacing primitives shared by the harvester
// and the embedding generator: a per-endpoint rate limiter, exponential
// backoff with jitter, and a retry helper.
//
// The limiter spaces calls to an external endpoint; backoff spreads retries
// of a failed call; the blocked-origin cooldown is a separate, longer pause
// used when the remote origin signals it has started blocking the whole
// client (HTTP 403/429), not just one request.
package throttle
