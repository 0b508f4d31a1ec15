package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidArtifact indicates an Artifact failed validation.
	ErrInvalidArtifact = errors.New("invalid artifact")

	// ErrInvalidObjectID indicates an ObjectID is missing or non-positive.
	ErrInvalidObjectID = errors.New("object id must be positive")

	// ErrEmbeddingWithoutSummary indicates an embedding is set on an
	// artifact whose embedding summary is empty.
	ErrEmbeddingWithoutSummary = errors.New("embedding set without embedding summary")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
