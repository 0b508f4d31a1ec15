/*
   Copyright 2025 Poiesic Systems

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
	"github.com/poiesic/curio/throttle"
)

const (
	// DefaultConcurrency bounds simultaneous in-flight fetches.
	DefaultConcurrency = 12
	// endpointKey tags harvest fetches in the rate limiter.
	endpointKey = "harvest"
	// defaultMinInterval spaces fetch admissions across all workers.
	defaultMinInterval = 250 * time.Millisecond
	// Pacing bounds for the randomized post-fetch delay. The jitter keeps
	// the request stream from presenting a fixed-interval fingerprint.
	defaultPacingMin = 100 * time.Millisecond
	defaultPacingMax = 400 * time.Millisecond
)

// Stats aggregates the outcome counts of one harvest run.
type Stats struct {
	Processed atomic.Int64
	Updated   atomic.Int64
	Skipped   atomic.Int64
	Errored   atomic.Int64
}

// Harvester enriches artifacts by fetching their catalog pages, extracting
// tracked fields, and merging them with the monotonic-additive policy.
// Item-level failures never abort a run.
type Harvester struct {
	repo        storage.ArtifactRepository
	fetcher     Fetcher
	limiter     *throttle.Limiter
	concurrency int
	dryRun      bool
	pacingMin   time.Duration
	pacingMax   time.Duration
	sleep       func(context.Context, time.Duration)
	logger      *slog.Logger

	// gate pauses all workers during a blocked-origin cooldown.
	gateMu    sync.Mutex
	gateUntil time.Time
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithConcurrency sets the fetch worker count.
func WithConcurrency(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithDryRun reports intended changes without writing.
func WithDryRun(dryRun bool) Option {
	return func(h *Harvester) { h.dryRun = dryRun }
}

// WithPacing overrides the randomized post-fetch delay bounds. Zero values
// disable pacing, which tests rely on.
func WithPacing(min, max time.Duration) Option {
	return func(h *Harvester) {
		h.pacingMin = min
		h.pacingMax = max
	}
}

// WithLimiter replaces the default rate limiter.
func WithLimiter(limiter *throttle.Limiter) Option {
	return func(h *Harvester) { h.limiter = limiter }
}

// withSleep injects the cooldown sleep for tests.
func withSleep(sleep func(context.Context, time.Duration)) Option {
	return func(h *Harvester) { h.sleep = sleep }
}

// NewHarvester creates a harvester over the given repository and fetcher.
func NewHarvester(repo storage.ArtifactRepository, fetcher Fetcher, opts ...Option) *Harvester {
	h := &Harvester{
		repo:        repo,
		fetcher:     fetcher,
		limiter:     throttle.NewLimiter(defaultMinInterval),
		concurrency: DefaultConcurrency,
		pacingMin:   defaultPacingMin,
		pacingMax:   defaultPacingMax,
		sleep:       sleepCtx,
		logger:      slog.Default().With("component", "harvester"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run harvests every artifact still needing enrichment, up to limit items
// (limit <= 0 means the whole worklist). The run proceeds to exhaustion and
// returns aggregate counts; only selection and pool setup errors are fatal.
func (h *Harvester) Run(ctx context.Context, limit int) (*Stats, error) {
	items, err := h.repo.ListNeedingEnrichment(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting worklist: %w", err)
	}

	stats := &Stats{}
	if len(items) == 0 {
		h.logger.Info("nothing to harvest")
		return stats, nil
	}

	pool, err := ants.NewPool(h.concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	h.logger.Info("starting harvest run",
		"items", len(items), "concurrency", h.concurrency, "dry_run", h.dryRun)
	started := time.Now()

	var wg sync.WaitGroup
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			h.processItem(ctx, item, stats)
		}); err != nil {
			wg.Done()
			stats.Errored.Add(1)
			stats.Processed.Add(1)
		}
	}
	wg.Wait()

	h.logger.Info("harvest run complete",
		"processed", stats.Processed.Load(),
		"updated", stats.Updated.Load(),
		"skipped", stats.Skipped.Load(),
		"errored", stats.Errored.Load(),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return stats, nil
}

// processItem runs one artifact through fetch, classification, extraction
// and merge. All failures are converted into counters.
func (h *Harvester) processItem(ctx context.Context, item *core.Artifact, stats *Stats) {
	stats.Processed.Add(1)
	logger := h.logger.With("object_id", item.ObjectID)

	h.waitForGate(ctx)
	if err := h.limiter.Wait(ctx, endpointKey); err != nil {
		stats.Errored.Add(1)
		return
	}

	doc, err := h.fetcher.Fetch(ctx, item.ObjectID)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		stats.Errored.Add(1)
		return
	}

	switch Classify(doc) {
	case OutcomeBlocked:
		logger.Warn("origin is blocking requests, pausing run",
			"status", doc.StatusCode, "cooldown", throttle.BlockedCooldown)
		h.pauseGate(throttle.BlockedCooldown)
		h.sleep(ctx, throttle.BlockedCooldown)
		stats.Errored.Add(1)
		return
	case OutcomeTransport:
		logger.Warn("transport error", "status", doc.StatusCode)
		stats.Errored.Add(1)
		return
	case OutcomeNotFound:
		logger.Debug("no catalog page", "status", doc.StatusCode)
		stats.Skipped.Add(1)
		return
	}

	fields := ExtractFields(doc.Body)
	if fields.IsEmpty() {
		stats.Skipped.Add(1)
		h.pace(ctx)
		return
	}

	var changed []string
	if h.dryRun {
		preview := *item
		changed = core.MergeExtracted(&preview, fields)
		if len(changed) > 0 {
			logger.Info("would update", "columns", changed)
		}
	} else {
		changed, err = h.repo.MergeFields(ctx, item.ObjectID, fields)
		if err != nil {
			logger.Warn("merge failed", "error", err)
			stats.Errored.Add(1)
			h.pace(ctx)
			return
		}
	}

	if len(changed) > 0 {
		stats.Updated.Add(1)
	} else {
		stats.Skipped.Add(1)
	}
	h.pace(ctx)
}

// pace sleeps a randomized delay before the worker picks up its next item.
func (h *Harvester) pace(ctx context.Context) {
	if h.pacingMax <= 0 {
		return
	}
	delay := h.pacingMin
	if spread := h.pacingMax - h.pacingMin; spread > 0 {
		delay += rand.N(spread)
	}
	h.sleep(ctx, delay)
}

// pauseGate extends the run-wide cooldown deadline.
func (h *Harvester) pauseGate(d time.Duration) {
	h.gateMu.Lock()
	defer h.gateMu.Unlock()
	until := time.Now().Add(d)
	if until.After(h.gateUntil) {
		h.gateUntil = until
	}
}

// waitForGate blocks while a blocked-origin cooldown is active. Another
// blocked response can extend the deadline mid-sleep, so re-check after each
// sleep and wait again whenever the deadline moved.
func (h *Harvester) waitForGate(ctx context.Context) {
	var lastDeadline time.Time
	for {
		h.gateMu.Lock()
		deadline := h.gateUntil
		h.gateMu.Unlock()

		if time.Until(deadline) <= 0 || ctx.Err() != nil {
			return
		}
		if deadline.Equal(lastDeadline) {
			// Slept out the full cooldown and nobody extended it.
			return
		}
		lastDeadline = deadline
		h.sleep(ctx, time.Until(deadline))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
