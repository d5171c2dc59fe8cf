package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an index is queried before it is built or loaded.
	ErrNotReady = errors.New("index not ready")
	// ErrDimensionMismatch is returned when a vector length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStaleArtifact is returned when a persisted artifact does not match the corpus.
	ErrStaleArtifact = errors.New("stale artifact")
	// ErrInvalidFilter is returned for unknown filter keys or malformed values.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrEmbedding is returned when the embedding function fails.
	ErrEmbedding = errors.New("embedding failed")
	// ErrInvalidCorpus is returned for corpora with empty or duplicate course codes.
	ErrInvalidCorpus = errors.New("invalid corpus")
	// ErrNotFound is returned when a course code is not in the corpus.
	ErrNotFound = errors.New("not found")
)

// DimensionMismatchError carries the offending and expected vector lengths.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, want %d", e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// StaleArtifactError names the artifact that failed its freshness check.
type StaleArtifactError struct {
	Artifact string
	Reason   string
}

func (e *StaleArtifactError) Error() string {
	return fmt.Sprintf("stale artifact %s: %s", e.Artifact, e.Reason)
}

func (e *StaleArtifactError) Unwrap() error { return ErrStaleArtifact }

// InvalidFilterError describes a rejected filter key or value.
type InvalidFilterError struct {
	Key    string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Key, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }

// EmbeddingError wraps a failure from the embedding provider.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding via %s: %v", e.Provider, e.Err)
}

// Is lets errors.Is match both ErrEmbedding and the underlying cause.
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

func (e *EmbeddingError) Unwrap() error { return e.Err }
