package storage

import (
	"context"
	"time"

	"github.com/poiesic/curio/core"
)

// ArtifactRepository provides operations for managing artifacts.
// Implementations must be thread-safe and support concurrent access.
type ArtifactRepository interface {
	// AddArtifacts inserts one or more artifacts. Returns ErrDuplicateKey
	// if an artifact with the same ObjectID already exists.
	AddArtifacts(ctx context.Context, artifacts ...*core.Artifact) error

	// GetArtifact retrieves a single artifact by its external object id.
	// Returns ErrNotFound if the artifact doesn't exist.
	GetArtifact(ctx context.Context, objectID int64) (*core.Artifact, error)

	// ListNeedingEnrichment returns artifacts with at least one unpopulated
	// tracked enrichment field, ordered by ObjectID ascending so re-runs are
	// deterministic. limit <= 0 means no limit.
	ListNeedingEnrichment(ctx context.Context, limit int) ([]*core.Artifact, error)

	// ListNeedingSummary returns artifacts that have summary input
	// (description or image) but no embedding summary yet, ordered by
	// ObjectID ascending. limit <= 0 means no limit.
	ListNeedingSummary(ctx context.Context, limit int) ([]*core.Artifact, error)

	// ListNeedingEmbedding returns artifacts with a non-empty embedding
	// summary and no embedding, ordered by ObjectID ascending. This ordering
	// plus the null-embedding predicate is what makes the embedding
	// generator resumable: interrupted runs simply pick up the remainder.
	// limit <= 0 means no limit.
	ListNeedingEmbedding(ctx context.Context, limit int) ([]*core.Artifact, error)

	// MergeFields applies extracted fields to the artifact's row with the
	// monotonic-additive policy (core.MergeExtracted): populated fields are
	// never overwritten. Returns the names of fields that changed.
	// Returns ErrNotFound if the artifact doesn't exist.
	MergeFields(ctx context.Context, objectID int64, fields core.ExtractedFields) ([]string, error)

	// SetSummary writes the embedding summary for an artifact. Writing a
	// summary whose core.HashContent differs from the stored summary hash
	// clears any existing embedding, so a regenerated summary makes the
	// artifact eligible for re-embedding. Writing the same summary keeps
	// the embedding intact.
	// Returns ErrNotFound if the artifact doesn't exist.
	SetSummary(ctx context.Context, objectID int64, summary string) error

	// SetEmbedding writes the embedding vector, its summary hash, and
	// ProcessedAt in a single per-row update.
	// Returns ErrNotFound if the artifact doesn't exist.
	SetEmbedding(ctx context.Context, objectID int64, vector []float32, summaryHash uint64) error

	// FindNearest returns up to limit artifacts with a stored embedding,
	// scored by cosine similarity to the query vector and ordered by
	// similarity descending, ObjectID ascending on ties. Artifacts without
	// an embedding are excluded, not scored as zero.
	FindNearest(ctx context.Context, vector []float32, limit int) ([]*core.SearchResult, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// CachedDocument is a fetched external document held in the harvest cache.
type CachedDocument struct {
	Body       string
	StatusCode int
	FetchedAt  time.Time
}

// DocumentCache stores fetched external documents so repeated harvester runs
// do not re-hit the origin within the cache TTL.
type DocumentCache interface {
	// GetDocument retrieves the cached document for an object id.
	// Returns ErrNotFound on a cache miss.
	GetDocument(objectID int64) (*CachedDocument, error)

	// PutDocument stores a fetched document for an object id.
	PutDocument(objectID int64, doc *CachedDocument) error

	// Close closes the cache and releases resources.
	Close() error
}
