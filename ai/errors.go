package ai

import "errors"

var (
	// ErrDimensionMismatch is returned when a provider responds with a
	// vector whose length differs from the configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")

	// ErrEmptyResponse is returned when a provider responds without any
	// usable content.
	ErrEmptyResponse = errors.New("empty provider response")
)
