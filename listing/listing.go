package listing

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned to a page selection whose response arrived after
// a newer selection was made. Its result was discarded.
var ErrSuperseded = errors.New("listing: superseded by a newer page selection")

// Status is the render state of a Listing.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusEmpty
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of what a Listing shows.
type State[T any] struct {
	Status      Status
	Records     []T
	CurrentPage int
	LastPage    int
	Total       int64
	// Selected is the most recent page the user asked for; it differs from
	// CurrentPage while a fetch is in flight or after it failed.
	Selected int
	// Err is set with StatusError. Records still hold the last good page.
	Err error
}

// Retryable reports whether the last fetch failed and can be retried.
func (s State[T]) Retryable() bool { return s.Status == StatusError }

// Listing keeps one collection's visible page. Page selections may overlap;
// only the response to the most recent selection is applied.
type Listing[T any] struct {
	mu        sync.Mutex
	fetcher   Fetcher[T]
	pageSize  int
	gen       uint64
	state     State[T]
	observers []func(State[T])
}

// New returns an idle Listing on page 1.
func New[T any](f Fetcher[T], pageSize int) *Listing[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Listing[T]{
		fetcher:  f,
		pageSize: pageSize,
		state:    State[T]{Status: StatusIdle, CurrentPage: DefaultPage, LastPage: 1, Selected: DefaultPage},
	}
}

// PageSize is fixed for the lifetime of the listing.
func (l *Listing[T]) PageSize() int { return l.pageSize }

// OnChange registers fn to receive every applied state.
func (l *Listing[T]) OnChange(fn func(State[T])) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// State returns the current snapshot.
func (l *Listing[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Select fetches page and applies the result unless a newer selection was
// made meanwhile, in which case ErrSuperseded is returned with the state
// the newer selection produced. A failed fetch leaves CurrentPage unchanged.
func (l *Listing[T]) Select(ctx context.Context, page int) (State[T], error) {
	if page < 1 {
		page = DefaultPage
	}

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.state.Status = StatusLoading
	l.state.Selected = page
	l.state.Err = nil
	snap, obs := l.state, l.observersLocked()
	l.mu.Unlock()
	notify(obs, snap)

	p, err := l.fetcher.FetchPage(ctx, page, l.pageSize)

	l.mu.Lock()
	if gen != l.gen {
		cur := l.state
		l.mu.Unlock()
		return cur, ErrSuperseded
	}
	if err != nil {
		l.state.Status = StatusError
		l.state.Err = err
	} else {
		status := StatusReady
		if p.Empty() {
			status = StatusEmpty
		}
		l.state = State[T]{
			Status:      status,
			Records:     p.Records,
			CurrentPage: p.CurrentPage,
			LastPage:    p.LastPage,
			Total:       p.Total,
			Selected:    page,
		}
	}
	snap, obs = l.state, l.observersLocked()
	l.mu.Unlock()
	notify(obs, snap)
	return snap, err
}

// Refresh re-fetches the most recently selected page, e.g. after a record
// was created in this collection.
func (l *Listing[T]) Refresh(ctx context.Context) (State[T], error) {
	l.mu.Lock()
	page := l.state.Selected
	l.mu.Unlock()
	return l.Select(ctx, page)
}

func (l *Listing[T]) observersLocked() []func(State[T]) {
	if len(l.observers) == 0 {
		return nil
	}
	out := make([]func(State[T]), len(l.observers))
	copy(out, l.observers)
	return out
}

func notify[T any](obs []func(State[T]), s State[T]) {
	for _, fn := range obs {
		fn(s)
	}
}
