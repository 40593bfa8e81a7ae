// Package databases provides the storage adapters: a qdrant-backed vector
// store with payload filters, and a read-only postgres adapter for the
// admission-score view and school tables.
package databases

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Point is a vector with its payload, as stored.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a scored point returned by Search, ordered by score desc.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Condition is a field-equality predicate on payload keys.
type Condition struct {
	Key   string
	Value any
}

// Filter composes equality conditions. All three clauses may be combined.
type Filter struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// VectorStore is the contract the retrieval pipeline depends on.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dim uint64) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int, minScore float32, filter *Filter) ([]SearchResult, error)
	Count(ctx context.Context, collection string) (uint64, error)
	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error
	Close() error
}

// RetrievableError marks a transport-level failure worth retrying.
type RetrievableError struct {
	Err error
}

func (e *RetrievableError) Error() string { return fmt.Sprintf("retrievable: %v", e.Err) }
func (e *RetrievableError) Unwrap() error { return e.Err }

// FatalError marks a schema or quota failure that retries cannot fix.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// IsRetrievable reports whether the error is transient.
func IsRetrievable(err error) bool {
	var re *RetrievableError
	return errors.As(err, &re)
}

// classify wraps an adapter error as retrievable or fatal based on the
// transport status code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return &RetrievableError{Err: err}
	default:
		return &FatalError{Err: err}
	}
}
