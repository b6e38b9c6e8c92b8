// Package store is the record store behind posts and comments: range reads
// ordered newest first with an exact count, plus single-row writes by id.
package store

import "context"

// RangeQuery selects the inclusive zero-based row range [From, To] of a
// collection ordered by created_at descending.
type RangeQuery struct {
	ParentID *uint
	AuthorID *uint
	From     int
	To       int
}

// Collection is the contract the listing and submission components consume.
type Collection[T any] interface {
	// Range returns the rows inside the window together with the number of
	// rows matching the filters, counted at query time.
	Range(ctx context.Context, q RangeQuery) ([]T, int64, error)
	Get(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, rec *T) error
	// Update applies changes to the row and returns the reloaded record.
	Update(ctx context.Context, id uint, changes map[string]any) (*T, error)
	Delete(ctx context.Context, id uint) error
}
