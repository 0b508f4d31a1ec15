package embedgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/curio/ai/mock"
	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage/memory"
)

func TestBuildSummaryPrompt_OmitsEmptyFields(t *testing.T) {
	prompt := BuildSummaryPrompt(&core.Artifact{
		Title:  "Water Jar",
		Medium: "Stoneware",
	})

	assert.Contains(t, prompt, "Title: Water Jar")
	assert.Contains(t, prompt, "Medium: Stoneware")
	assert.NotContains(t, prompt, "Artist:")
	assert.NotContains(t, prompt, "Culture:")
}

func TestBuildSummaryPrompt_TruncatesLongDescriptions(t *testing.T) {
	prompt := BuildSummaryPrompt(&core.Artifact{
		Description: strings.Repeat("a", maxPromptDescription+100),
	})

	assert.Contains(t, prompt, "...")
	assert.Less(t, len(prompt), maxPromptDescription+50)
}

func TestBuildSummaryPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte runes spanning the byte limit must not be split.
	prompt := BuildSummaryPrompt(&core.Artifact{
		Description: strings.Repeat("青", maxPromptDescription),
	})

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "...")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abcd", 2))
	// "東" is 3 bytes; a 4-byte cut of "東京" lands mid-rune and backs up.
	assert.Equal(t, "東", truncateRunes("東京", 4))
	assert.True(t, utf8.ValidString(truncateRunes("日本語のテキスト", 10)))
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "A fine jar.", cleanSummary("Summary: A fine jar."))
	assert.Equal(t, "A fine jar.", cleanSummary("summary:A fine jar."))
	assert.Equal(t, "A fine jar.", cleanSummary("  A fine jar.  "))
	assert.Equal(t, "", cleanSummary("   "))
}

func TestSummaryWriter_WritesSummaries(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx,
		&core.Artifact{ObjectID: 1, Description: "A carved jade pendant in the form of a dragon."},
		&core.Artifact{ObjectID: 2}, // no summary input, not selected
	))

	generator := mock.NewMockTextGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, instruction, message string) (string, error) {
		assert.Contains(t, message, "jade pendant")
		return "Summary: A jade dragon pendant of the Eastern Zhou period.", nil
	}

	writer := NewSummaryWriter(repo, generator)
	stats, err := writer.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Succeeded)

	got, err := repo.GetArtifact(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A jade dragon pendant of the Eastern Zhou period.", got.EmbeddingSummary)
}

func TestSummaryWriter_FailedItemsStayEligible(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx,
		&core.Artifact{ObjectID: 1, Description: "A carved jade pendant in the form of a dragon."},
	))

	generator := mock.NewMockTextGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, instruction, message string) (string, error) {
		return "", errors.New("model unavailable")
	}

	writer := NewSummaryWriter(repo, generator)
	stats, err := writer.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	pending, err := repo.ListNeedingSummary(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
