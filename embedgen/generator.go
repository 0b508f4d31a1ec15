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

package embedgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
	"github.com/poiesic/curio/throttle"
)

// Config holds configuration for the embedding generation run.
type Config struct {
	// MaxRetries is the maximum number of attempts per item.
	MaxRetries int

	// Backoff controls the delay between retry attempts.
	Backoff throttle.Backoff

	// ReportInterval is how often to report progress (number of items).
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		Backoff:        throttle.DefaultBackoff(),
		ReportInterval: 25,
	}
}

// Stats aggregates the outcome counts of one generation run.
type Stats struct {
	Processed int
	Succeeded int
	Failed    int
}

// Generator embeds artifact summaries. Runs are resumable: an item is
// selected only while its embedding is null, so an interrupted run picks up
// exactly where it stopped and already-embedded items never trigger a second
// provider call.
type Generator struct {
	repo     storage.ArtifactRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewGenerator creates an embedding generator.
// progress: where to write progress output (typically os.Stderr)
func NewGenerator(repo storage.ArtifactRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Generator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Generator{
		repo:     repo,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "embedgen"),
	}
}

// Run embeds up to limit pending artifacts (limit <= 0 means the whole
// worklist). Items are processed in ascending object id order. An item whose
// retries are exhausted is counted as failed and left with a null embedding,
// so the next run selects it again.
func (g *Generator) Run(ctx context.Context, limit int) (*Stats, error) {
	items, err := g.repo.ListNeedingEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting worklist: %w", err)
	}

	stats := &Stats{}
	if len(items) == 0 {
		g.logger.Info("no artifacts need embeddings")
		return stats, nil
	}

	g.logger.Info("starting embedding run", "items", len(items))
	tracker := NewProgressTracker(g.progress, len(items), g.config.ReportInterval)
	tracker.Start()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		if err := g.embedOne(ctx, item); err != nil {
			g.logger.Warn("embedding failed",
				"object_id", item.ObjectID, "error", err)
			stats.Failed++
			tracker.RecordFailure()
			continue
		}
		stats.Succeeded++
		tracker.RecordSuccess()
	}
	tracker.Finish()

	g.logger.Info("embedding run complete",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"elapsed", tracker.Elapsed().Round(time.Millisecond))
	return stats, nil
}

// embedOne embeds a single summary with retry, then writes the vector,
// summary hash and processed timestamp in one repository call.
func (g *Generator) embedOne(ctx context.Context, item *core.Artifact) error {
	var vector []float32

	err := throttle.RetryWithBackoff(ctx, func() error {
		v, err := g.embedder.EmbedText(ctx, item.EmbeddingSummary)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, g.config.MaxRetries, g.config.Backoff)
	if err != nil {
		return err
	}

	vector = NormalizeVector(vector)
	hash := core.HashContent(item.EmbeddingSummary)
	return g.repo.SetEmbedding(ctx, item.ObjectID, vector, hash)
}
