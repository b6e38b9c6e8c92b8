// Package listing computes page windows over the record store and keeps the
// visible page of a collection in sync with the user's latest selection.
package listing

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/cppla/myblog/store"
)

// DefaultPage is used when the requested page is missing or malformed.
const DefaultPage = 1

// ParsePage returns the positive page number in raw, or DefaultPage.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return DefaultPage
	}
	return n
}

// Window returns the inclusive zero-based row range shown on page. A page
// whose offset does not fit in an int gets the last representable window,
// which lies past the end of any collection.
func Window(page, pageSize int) (from, to int) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page-1 > (math.MaxInt-pageSize)/pageSize {
		return math.MaxInt - pageSize + 1, math.MaxInt
	}
	from = (page - 1) * pageSize
	return from, from + pageSize - 1
}

// LastPage is ceil(count/pageSize) with a floor of one page.
func LastPage(count int64, pageSize int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	last := int((count + int64(pageSize) - 1) / int64(pageSize))
	if last < 1 {
		return 1
	}
	return last
}

// Page is one window of a collection.
type Page[T any] struct {
	Records     []T   `json:"items"`
	CurrentPage int   `json:"page"`
	LastPage    int   `json:"total_pages"`
	PageSize    int   `json:"page_size"`
	Total       int64 `json:"total"`
}

// Empty reports whether the window holds no records.
func (p Page[T]) Empty() bool { return len(p.Records) == 0 }

// Source is the read side of a record store collection.
type Source[T any] interface {
	Range(ctx context.Context, q store.RangeQuery) ([]T, int64, error)
}

// FetchPage issues a single bounded range query for page and derives the
// last page from the count returned with it. A page past the end yields an
// empty Page, not an error.
func FetchPage[T any](ctx context.Context, src Source[T], parentID *uint, page, pageSize int) (Page[T], error) {
	if page < 1 {
		page = DefaultPage
	}
	from, to := Window(page, pageSize)
	rows, total, err := src.Range(ctx, store.RangeQuery{ParentID: parentID, From: from, To: to})
	if err != nil {
		return Page[T]{}, err
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{
		Records:     rows,
		CurrentPage: page,
		LastPage:    LastPage(total, pageSize),
		PageSize:    pageSize,
		Total:       total,
	}, nil
}

// Fetcher loads one page of a collection with a fixed filter.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, page, pageSize int) (Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, page, pageSize int) (Page[T], error)

func (f FetcherFunc[T]) FetchPage(ctx context.Context, page, pageSize int) (Page[T], error) {
	return f(ctx, page, pageSize)
}

// FromSource binds a store source and optional parent filter into a Fetcher.
func FromSource[T any](src Source[T], parentID *uint) Fetcher[T] {
	return FetcherFunc[T](func(ctx context.Context, page, pageSize int) (Page[T], error) {
		return FetchPage(ctx, src, parentID, page, pageSize)
	})
}
