package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/ai/mock"
	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage/memory"
)

func embedded(t *testing.T, repo *memory.Repository, id int64, vec []float32) {
	t.Helper()
	require.NoError(t, repo.AddArtifacts(context.Background(), &core.Artifact{
		ObjectID:         id,
		EmbeddingSummary: "summary",
		Embedding:        vec,
	}))
}

func fixedProvider(vec []float32) ai.Provider {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vec, nil
	}
	return mock.NewMockProviderWithServices(embedder, mock.NewMockTextGenerator())
}

func TestNewSearcher_Validation(t *testing.T) {
	provider := mock.NewMockProvider()
	repo := memory.NewRepository()
	defer repo.Close()

	_, err := NewSearcher(nil, provider)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewSearcher(repo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)
	assert.NotNil(t, searcher)
}

func TestSearcher_RanksBySimilarity(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	embedded(t, repo, 1, []float32{1, 0})
	embedded(t, repo, 2, []float32{0, 1})
	embedded(t, repo, 3, []float32{0.7071, 0.7071})

	provider := fixedProvider([]float32{1, 0})

	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "bronze vessel", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, int64(1), resp.Results[0].Artifact.ObjectID)
	assert.Equal(t, int64(3), resp.Results[1].Artifact.ObjectID)
	assert.Equal(t, int64(2), resp.Results[2].Artifact.ObjectID)

	// Non-increasing similarity, all within [0, 1].
	for i, result := range resp.Results {
		assert.GreaterOrEqual(t, result.Similarity, float32(0))
		assert.LessOrEqual(t, result.Similarity, float32(1))
		if i > 0 {
			assert.LessOrEqual(t, result.Similarity, resp.Results[i-1].Similarity)
		}
	}
}

func TestSearcher_Deterministic(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	// Equal vectors produce equal similarity; ordering must still be stable.
	for _, id := range []int64{42, 7, 19} {
		embedded(t, repo, id, []float32{0, 1})
	}

	provider := fixedProvider([]float32{0, 1})
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	first, err := searcher.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	second, err := searcher.Search(context.Background(), "query", 10)
	require.NoError(t, err)

	require.Len(t, first.Results, 3)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Artifact.ObjectID, second.Results[i].Artifact.ObjectID)
	}
	assert.Equal(t, int64(7), first.Results[0].Artifact.ObjectID, "ties break on ascending object id")
	assert.Equal(t, int64(19), first.Results[1].Artifact.ObjectID)
	assert.Equal(t, int64(42), first.Results[2].Artifact.ObjectID)
}

func TestSearcher_HardCapOnLimit(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	for id := int64(1); id <= 60; id++ {
		embedded(t, repo, id, []float32{1, 0})
	}

	provider := fixedProvider([]float32{1, 0})
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "query", 1000)
	require.NoError(t, err)
	assert.Len(t, resp.Results, MaxResults)
}

func TestSearcher_DefaultLimit(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	for id := int64(1); id <= 20; id++ {
		embedded(t, repo, id, []float32{1, 0})
	}

	provider := fixedProvider([]float32{1, 0})
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultResults)
}

func TestSearcher_ExcludesUnembeddedItems(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	embedded(t, repo, 1, []float32{1, 0})
	require.NoError(t, repo.AddArtifacts(context.Background(), &core.Artifact{
		ObjectID:         2,
		EmbeddingSummary: "summary without embedding",
	}))

	provider := fixedProvider([]float32{1, 0})
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(1), resp.Results[0].Artifact.ObjectID)
}

func TestSearcher_NegativeSimilarityClampedToZero(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	embedded(t, repo, 1, []float32{-1, 0}) // opposed to the query vector

	provider := fixedProvider([]float32{1, 0})
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, float32(0), resp.Results[0].Similarity)
}

func TestSearcher_UsesCleanedQuery(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	embedded(t, repo, 1, []float32{1, 0})

	generator := mock.NewMockTextGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, instruction, message string) (string, error) {
		return "mexican art mural folk", nil
	}

	var embeddedQuery string
	mockEmbedder := mock.NewMockEmbedder()
	mockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		embeddedQuery = text
		return []float32{1, 0}, nil
	}
	provider := mock.NewMockProviderWithServices(mockEmbedder, generator)

	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	resp, err := searcher.Search(context.Background(), "mexican", 10)
	require.NoError(t, err)
	assert.Equal(t, "mexican art mural folk", resp.CleanedQuery)
	assert.Equal(t, "mexican art mural folk", embeddedQuery)
}

func TestSearcher_EmptyQuery(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()

	provider := mock.NewMockProvider()
	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearcher_EmbeddingFailureIsFatal(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()

	mockEmbedder := mock.NewMockEmbedder()
	mockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider down")
	}
	provider := mock.NewMockProviderWithServices(mockEmbedder, mock.NewMockTextGenerator())

	searcher, err := NewSearcher(repo, provider)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "query", 10)
	assert.Error(t, err)
}
