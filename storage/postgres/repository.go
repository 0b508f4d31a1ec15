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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS artifact (
    object_id         BIGINT PRIMARY KEY,
    title             TEXT NOT NULL DEFAULT '',
    artist            TEXT NOT NULL DEFAULT '',
    date              TEXT NOT NULL DEFAULT '',
    medium            TEXT NOT NULL DEFAULT '',
    culture           TEXT NOT NULL DEFAULT '',
    department        TEXT NOT NULL DEFAULT '',
    credit_line       TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    primary_image     TEXT NOT NULL DEFAULT '',
    embedding_summary TEXT NOT NULL DEFAULT '',
    embedding         VECTOR,
    summary_hash      BIGINT NOT NULL DEFAULT 0,
    processed_at      TIMESTAMPTZ,
    inserted_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS artifact_needs_embedding_idx
    ON artifact (object_id)
    WHERE embedding_summary <> '' AND embedding IS NULL;
`

const artifactColumns = `object_id, title, artist, date, medium, culture,
	department, credit_line, description, primary_image,
	embedding_summary, embedding, summary_hash, processed_at,
	inserted_at, updated_at`

// Repository is the PostgreSQL implementation of storage.ArtifactRepository,
// using pgvector for nearest-neighbor search.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.ArtifactRepository = (*Repository)(nil)

// NewRepository connects to PostgreSQL with the given DSN, registers the
// pgvector codec on every pooled connection, and ensures the schema exists.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: slog.Default().With("component", "postgres"),
	}, nil
}

// AddArtifacts inserts artifacts in a single transaction. Any duplicate
// object id fails the whole batch.
func (r *Repository) AddArtifacts(ctx context.Context, artifacts ...*core.Artifact) error {
	for _, artifact := range artifacts {
		if err := core.ValidateArtifact(artifact); err != nil {
			return err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, artifact := range artifacts {
		_, err := tx.Exec(ctx, `
			INSERT INTO artifact (
				object_id, title, artist, date, medium, culture,
				department, credit_line, description, primary_image,
				embedding_summary, embedding, summary_hash, processed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			artifact.ObjectID, artifact.Title, artifact.Artist, artifact.Date,
			artifact.Medium, artifact.Culture, artifact.Department,
			artifact.CreditLine, artifact.Description, artifact.PrimaryImage,
			artifact.EmbeddingSummary, embeddingParam(artifact.Embedding),
			int64(artifact.SummaryHash), artifact.ProcessedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: object %d", storage.ErrDuplicateKey, artifact.ObjectID)
			}
			return fmt.Errorf("inserting artifact %d: %w", artifact.ObjectID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetArtifact retrieves an artifact by object id.
func (r *Repository) GetArtifact(ctx context.Context, objectID int64) (*core.Artifact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifact WHERE object_id = $1`, objectID)
	artifact, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return artifact, err
}

// ListNeedingEnrichment selects artifacts with any unpopulated tracked field,
// object id ascending.
func (r *Repository) ListNeedingEnrichment(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.listWhere(ctx, limit, `
		primary_image = '' OR description = '' OR artist = '' OR date = ''
		OR medium = '' OR culture = '' OR credit_line = ''`)
}

// ListNeedingSummary selects artifacts with summary input but no summary yet.
func (r *Repository) ListNeedingSummary(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.listWhere(ctx, limit, `
		embedding_summary = '' AND (description <> '' OR primary_image <> '')`)
}

// ListNeedingEmbedding selects artifacts with a summary and no embedding.
// The ordering makes interrupted runs resume from where they stopped.
func (r *Repository) ListNeedingEmbedding(ctx context.Context, limit int) ([]*core.Artifact, error) {
	return r.listWhere(ctx, limit, `embedding_summary <> '' AND embedding IS NULL`)
}

func (r *Repository) listWhere(ctx context.Context, limit int, predicate string) ([]*core.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact WHERE (` + predicate + `) ORDER BY object_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*core.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

// MergeFields applies the monotonic-additive merge inside a transaction so a
// concurrent writer cannot be overwritten. Returns the changed column names.
func (r *Repository) MergeFields(ctx context.Context, objectID int64, fields core.ExtractedFields) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifact WHERE object_id = $1 FOR UPDATE`, objectID)
	artifact, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	changed := core.MergeExtracted(artifact, fields)
	if len(changed) == 0 {
		return nil, tx.Commit(ctx)
	}

	values := mergedValues(artifact, changed)
	assignments := make([]string, len(changed))
	args := make([]any, 0, len(changed)+1)
	for i, column := range changed {
		assignments[i] = fmt.Sprintf("%s = $%d", column, i+1)
		args = append(args, values[i])
	}
	args = append(args, objectID)

	query := fmt.Sprintf(`UPDATE artifact SET %s, updated_at = now() WHERE object_id = $%d`,
		strings.Join(assignments, ", "), len(changed)+1)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating artifact %d: %w", objectID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	r.logger.Debug("merged fields", "object_id", objectID, "columns", changed)
	return changed, nil
}

// SetSummary writes the embedding summary for an artifact. A summary whose
// content hash differs from the stored summary_hash invalidates the existing
// embedding, so the row is selected again by ListNeedingEmbedding.
func (r *Repository) SetSummary(ctx context.Context, objectID int64, summary string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE artifact
		SET embedding_summary = $1,
		    embedding         = CASE WHEN summary_hash = $2 THEN embedding ELSE NULL END,
		    processed_at      = CASE WHEN summary_hash = $2 THEN processed_at ELSE NULL END,
		    summary_hash      = CASE WHEN summary_hash = $2 THEN summary_hash ELSE 0 END,
		    updated_at        = now()
		WHERE object_id = $3`,
		summary, int64(core.HashContent(summary)), objectID)
	if err != nil {
		return fmt.Errorf("setting summary for %d: %w", objectID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetEmbedding writes the vector, summary hash and processed timestamp in a
// single statement so an item is never half-embedded.
func (r *Repository) SetEmbedding(ctx context.Context, objectID int64, vector []float32, summaryHash uint64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE artifact
		SET embedding = $1, summary_hash = $2, processed_at = now(), updated_at = now()
		WHERE object_id = $3`,
		pgvector.NewVector(vector), int64(summaryHash), objectID)
	if err != nil {
		return fmt.Errorf("setting embedding for %d: %w", objectID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindNearest ranks artifacts by cosine similarity to the query vector.
// pgvector's <=> operator yields cosine distance; similarity is 1 - distance.
// Ties break on object id ascending so results are deterministic.
func (r *Repository) FindNearest(ctx context.Context, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+artifactColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM artifact
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, object_id ASC
		LIMIT $2`,
		pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("searching artifacts: %w", err)
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		result, err := scanSearchResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func embeddingParam(vector []float32) any {
	if len(vector) == 0 {
		return nil
	}
	return pgvector.NewVector(vector)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanArtifact(row pgx.Row) (*core.Artifact, error) {
	var (
		artifact    core.Artifact
		embedding   *pgvector.Vector
		summaryHash int64
	)
	err := row.Scan(
		&artifact.ObjectID, &artifact.Title, &artifact.Artist, &artifact.Date,
		&artifact.Medium, &artifact.Culture, &artifact.Department,
		&artifact.CreditLine, &artifact.Description, &artifact.PrimaryImage,
		&artifact.EmbeddingSummary, &embedding, &summaryHash,
		&artifact.ProcessedAt, &artifact.InsertedAt, &artifact.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		artifact.Embedding = embedding.Slice()
	}
	artifact.SummaryHash = uint64(summaryHash)
	return &artifact, nil
}

func scanSearchResult(row pgx.Row) (*core.SearchResult, error) {
	var (
		artifact    core.Artifact
		embedding   *pgvector.Vector
		summaryHash int64
		similarity  float64
	)
	err := row.Scan(
		&artifact.ObjectID, &artifact.Title, &artifact.Artist, &artifact.Date,
		&artifact.Medium, &artifact.Culture, &artifact.Department,
		&artifact.CreditLine, &artifact.Description, &artifact.PrimaryImage,
		&artifact.EmbeddingSummary, &embedding, &summaryHash,
		&artifact.ProcessedAt, &artifact.InsertedAt, &artifact.UpdatedAt,
		&similarity)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		artifact.Embedding = embedding.Slice()
	}
	artifact.SummaryHash = uint64(summaryHash)
	return &core.SearchResult{
		Artifact:   &artifact,
		Similarity: float32(similarity),
	}, nil
}

// mergedValues reads the post-merge values for the changed columns off the
// in-memory artifact, in the same order MergeExtracted reported them.
func mergedValues(a *core.Artifact, changed []string) []string {
	byColumn := map[string]string{
		"primary_image": a.PrimaryImage,
		"description":   a.Description,
		"artist":        a.Artist,
		"date":          a.Date,
		"medium":        a.Medium,
		"culture":       a.Culture,
		"credit_line":   a.CreditLine,
	}
	values := make([]string, len(changed))
	for i, column := range changed {
		values[i] = byColumn[column]
	}
	return values
}
