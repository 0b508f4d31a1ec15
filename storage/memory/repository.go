package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
)

// Repository is an in-memory implementation of storage.ArtifactRepository.
// It backs unit tests across the pipeline packages and mirrors the ordering
// and merge contracts of the PostgreSQL implementation.
type Repository struct {
	mu        sync.RWMutex
	artifacts map[int64]*core.Artifact
	closed    bool
}

// NewRepository creates an empty in-memory artifact repository.
//
// Returns the concrete type so tests can use helpers like Snapshot.
func NewRepository() *Repository {
	return &Repository{
		artifacts: make(map[int64]*core.Artifact),
	}
}

var _ storage.ArtifactRepository = (*Repository)(nil)

// AddArtifacts inserts artifacts, rejecting duplicates by ObjectID.
func (r *Repository) AddArtifacts(ctx context.Context, artifacts ...*core.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return storage.ErrStorageClosed
	}

	for _, artifact := range artifacts {
		if err := core.ValidateArtifact(artifact); err != nil {
			return err
		}
		if _, exists := r.artifacts[artifact.ObjectID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	now := time.Now().UTC()
	for _, artifact := range artifacts {
		stored := cloneArtifact(artifact)
		if stored.InsertedAt.IsZero() {
			stored.InsertedAt = now
		}
		stored.UpdatedAt = now
		r.artifacts[stored.ObjectID] = stored
	}
	return nil
}

// GetArtifact retrieves an artifact by object id.
func (r *Repository) GetArtifact(ctx context.Context, objectID int64) (*core.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	artifact, ok := r.artifacts[objectID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneArtifact(artifact), nil
}

// ListNeedingEnrichment returns artifacts with unpopulated tracked fields,
// ObjectID ascending.
func (r *Repository) ListNeedingEnrichment(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.list(limit, func(a *core.Artifact) bool {
		return a.NeedsEnrichment()
	})
}

// ListNeedingSummary returns artifacts with summary input but no summary,
// ObjectID ascending.
func (r *Repository) ListNeedingSummary(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.list(limit, func(a *core.Artifact) bool {
		return a.EmbeddingSummary == "" && a.HasSummaryInput()
	})
}

// ListNeedingEmbedding returns artifacts with a summary and no embedding,
// ObjectID ascending.
func (r *Repository) ListNeedingEmbedding(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.list(limit, func(a *core.Artifact) bool {
		return a.EmbeddingSummary != "" && len(a.Embedding) == 0
	})
}

func (r *Repository) list(limit int, keep func(*core.Artifact) bool) ([]*core.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	var out []*core.Artifact
	for _, artifact := range r.artifacts {
		if keep(artifact) {
			out = append(out, cloneArtifact(artifact))
		}
	}

	slices.SortFunc(out, func(a, b *core.Artifact) int {
		switch {
		case a.ObjectID < b.ObjectID:
			return -1
		case a.ObjectID > b.ObjectID:
			return 1
		default:
			return 0
		}
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MergeFields applies the monotonic-additive merge to the stored row.
func (r *Repository) MergeFields(ctx context.Context, objectID int64, fields core.ExtractedFields) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	artifact, ok := r.artifacts[objectID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	changed := core.MergeExtracted(artifact, fields)
	if len(changed) > 0 {
		artifact.UpdatedAt = time.Now().UTC()
	}
	return changed, nil
}

// SetSummary writes the embedding summary. A summary whose content hash
// differs from the stored SummaryHash invalidates the existing embedding:
// the row becomes eligible for re-embedding on the next generator run.
func (r *Repository) SetSummary(ctx context.Context, objectID int64, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return storage.ErrStorageClosed
	}

	artifact, ok := r.artifacts[objectID]
	if !ok {
		return storage.ErrNotFound
	}

	if core.HashContent(summary) != artifact.SummaryHash {
		artifact.Embedding = nil
		artifact.SummaryHash = 0
		artifact.ProcessedAt = nil
	}
	artifact.EmbeddingSummary = summary
	artifact.UpdatedAt = time.Now().UTC()
	return nil
}

// SetEmbedding writes vector, summary hash and ProcessedAt together.
func (r *Repository) SetEmbedding(ctx context.Context, objectID int64, vector []float32, summaryHash uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return storage.ErrStorageClosed
	}

	artifact, ok := r.artifacts[objectID]
	if !ok {
		return storage.ErrNotFound
	}

	artifact.Embedding = slices.Clone(vector)
	artifact.SummaryHash = summaryHash
	now := time.Now().UTC()
	artifact.ProcessedAt = &now
	artifact.UpdatedAt = now
	return nil
}

// FindNearest scores all artifacts with an embedding by cosine similarity,
// descending, ObjectID ascending on ties.
func (r *Repository) FindNearest(ctx context.Context, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, storage.ErrStorageClosed
	}

	var results []*core.SearchResult
	for _, artifact := range r.artifacts {
		if len(artifact.Embedding) == 0 {
			continue
		}
		// pgvector rejects mismatched dimensions; hold the same contract here.
		if len(artifact.Embedding) != len(vector) {
			return nil, fmt.Errorf("%w: query dimension %d, stored %d",
				storage.ErrInvalidQuery, len(vector), len(artifact.Embedding))
		}
		results = append(results, &core.SearchResult{
			Artifact:   cloneArtifact(artifact),
			Similarity: cosineSimilarity(vector, artifact.Embedding),
		})
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		// Deterministic tie-break
		switch {
		case a.Artifact.ObjectID < b.Artifact.ObjectID:
			return -1
		case a.Artifact.ObjectID > b.Artifact.ObjectID:
			return 1
		default:
			return 0
		}
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close marks the repository closed.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Snapshot returns a copy of every stored artifact, ObjectID ascending.
// Test helper.
func (r *Repository) Snapshot() []*core.Artifact {
	out, _ := r.list(0, func(*core.Artifact) bool { return true })
	return out
}

func cloneArtifact(a *core.Artifact) *core.Artifact {
	clone := *a
	clone.Embedding = slices.Clone(a.Embedding)
	if a.ProcessedAt != nil {
		ts := *a.ProcessedAt
		clone.ProcessedAt = &ts
	}
	return &clone
}

// cosineSimilarity computes the full cosine similarity, not assuming
// unit-length vectors. Callers guarantee equal lengths. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
