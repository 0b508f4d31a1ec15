package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
)

// MaxResults is the hard cap on returned results regardless of the
// caller's requested limit.
const MaxResults = 50

// DefaultResults is used when the caller requests no particular limit.
const DefaultResults = 10

// Response carries ranked results plus the query phrase actually embedded,
// so callers can show users what was searched for.
type Response struct {
	Results      []*core.SearchResult
	CleanedQuery string
}

// Searcher ranks artifacts against a free-text query by cosine similarity
// over their embedding vectors.
type Searcher struct {
	repo      storage.ArtifactRepository
	embedder  ai.Embedder
	processor *QueryProcessor
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a searcher. The provider's embedder must be the same
// model and dimensionality used to generate the stored embeddings; vectors
// from different models are not comparable.
func NewSearcher(repo storage.ArtifactRepository, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		repo:      repo,
		embedder:  provider.Embedder(),
		processor: NewQueryProcessor(provider.TextGenerator()),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search processes the query, embeds the resulting phrase, and returns up to
// limit artifacts ranked by similarity. limit <= 0 uses DefaultResults and
// any request is capped at MaxResults. Similarities are clamped to [0, 1]
// and ordering is deterministic: similarity descending, object id ascending
// on ties.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if limit <= 0 {
		limit = DefaultResults
	}
	if limit > MaxResults {
		limit = MaxResults
	}

	cleaned := s.processor.Process(ctx, query)
	s.logger.Debug("query processed", "raw", query, "cleaned", cleaned)

	vector, err := s.embedder.EmbedText(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.repo.FindNearest(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("searching artifacts: %w", err)
	}

	for _, result := range results {
		result.Similarity = clampSimilarity(result.Similarity)
	}

	return &Response{
		Results:      results,
		CleanedQuery: cleaned,
	}, nil
}

// clampSimilarity bounds a score to [0, 1]. Floating point noise and
// opposed vectors can push raw cosine-derived scores outside the range.
func clampSimilarity(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
