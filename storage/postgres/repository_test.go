package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"

	"github.com/poiesic/curio/core"
)

func TestEmbeddingParam(t *testing.T) {
	assert.Nil(t, embeddingParam(nil))
	assert.Nil(t, embeddingParam([]float32{}))

	param := embeddingParam([]float32{0.5, 0.5})
	vec, ok := param.(pgvector.Vector)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.5}, vec.Slice())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
}

func TestMergedValues(t *testing.T) {
	artifact := &core.Artifact{
		Artist: "Utamaro",
		Medium: "Woodblock print",
	}

	values := mergedValues(artifact, []string{"medium", "artist"})
	assert.Equal(t, []string{"Woodblock print", "Utamaro"}, values)
}
