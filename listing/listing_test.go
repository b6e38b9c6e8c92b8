package listing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks each request until its page is released.
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
	src     *sliceSource
}

func newGatedFetcher(n int) *gatedFetcher {
	return &gatedFetcher{gates: map[int]chan struct{}{}, started: make(chan int, 8), src: newSource(n)}
}

func (g *gatedFetcher) gate(page int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[page]
	if !ok {
		ch = make(chan struct{})
		g.gates[page] = ch
	}
	return ch
}

func (g *gatedFetcher) FetchPage(ctx context.Context, page, pageSize int) (Page[int], error) {
	g.started <- page
	<-g.gate(page)
	return FetchPage[int](ctx, g.src, nil, page, pageSize)
}

func TestListing_LastRequestWins(t *testing.T) {
	f := newGatedFetcher(12)
	l := New[int](f, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	var err1 error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err1 = l.Select(ctx, 1)
	}()
	require.Equal(t, 1, <-f.started)

	wg.Add(1)
	var st2 State[int]
	var err2 error
	go func() {
		defer wg.Done()
		st2, err2 = l.Select(ctx, 2)
	}()
	require.Equal(t, 2, <-f.started)

	// page 2 answers first, page 1 arrives late
	close(f.gate(2))
	require.Eventually(t, func() bool { return l.State().Status == StatusReady }, time.Second, time.Millisecond)
	close(f.gate(1))
	wg.Wait()

	require.NoError(t, err2)
	assert.ErrorIs(t, err1, ErrSuperseded)
	assert.Equal(t, 2, st2.CurrentPage)

	final := l.State()
	assert.Equal(t, 2, final.CurrentPage)
	assert.Equal(t, []int{7, 6, 5, 4, 3}, final.Records)
	assert.Equal(t, 3, final.LastPage)
}

func TestListing_ErrorKeepsCurrentPage(t *testing.T) {
	src := newSource(12)
	l := New[int](FromSource[int](src, nil), 5)
	ctx := context.Background()

	_, err := l.Select(ctx, 2)
	require.NoError(t, err)

	src.err = errors.New("network down")
	st, err := l.Select(ctx, 3)
	require.Error(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.True(t, st.Retryable())
	assert.Equal(t, 2, st.CurrentPage)
	assert.Equal(t, 3, st.Selected)

	src.err = nil
	st, err = l.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st.Status)
	assert.Equal(t, 3, st.CurrentPage)
	assert.Equal(t, []int{2, 1}, st.Records)
}

func TestListing_PastEndIsEmptyNotError(t *testing.T) {
	l := New[int](FromSource[int](newSource(12), nil), 10)
	st, err := l.Select(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, st.Status)
	assert.Equal(t, 2, st.LastPage)
	assert.Nil(t, st.Err)
}

func TestListing_NotifiesObservers(t *testing.T) {
	l := New[int](FromSource[int](newSource(3), nil), 10)
	var seen []Status
	l.OnChange(func(s State[int]) { seen = append(seen, s.Status) })

	_, err := l.Select(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusLoading, StatusReady}, seen)
	assert.Equal(t, 1, l.State().CurrentPage)
}
