package sharedstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter counts subscriptions and records pushes.
type fakeAdapter struct {
	mu          sync.Mutex
	doc         []byte
	fetchCount  int32
	fetchDelay  time.Duration
	fetchErr    error
	pushErr     error
	pushes      []Mutation
	subscribed  int32
	onChange    func(doc []byte)
	pushedCh    chan Mutation
}

func newFakeAdapter(doc []byte) *fakeAdapter {
	return &fakeAdapter{doc: doc, pushedCh: make(chan Mutation, 16)}
}

func (f *fakeAdapter) Fetch(ctx context.Context) ([]byte, error) {
	atomic.AddInt32(&f.fetchCount, 1)
	if f.fetchDelay > 0 {
		select {
		case <-time.After(f.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.doc...), nil
}

func (f *fakeAdapter) Subscribe(onChange func(doc []byte)) (func(), error) {
	atomic.AddInt32(&f.subscribed, 1)
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return func() { atomic.AddInt32(&f.subscribed, -1) }, nil
}

func (f *fakeAdapter) Push(ctx context.Context, m Mutation) error {
	f.mu.Lock()
	f.pushes = append(f.pushes, m)
	f.mu.Unlock()
	f.pushedCh <- m
	return f.pushErr
}

func (f *fakeAdapter) pushRemote(doc []byte) {
	f.mu.Lock()
	onChange := f.onChange
	f.mu.Unlock()
	if onChange != nil {
		onChange(doc)
	}
}

func TestAcquire_SharesOneSubscription(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`{}`))

	const n = 5
	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := r.Acquire("workspace-folder:w1", a)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.subscribed), "one live subscription for N acquirers")
	assert.Equal(t, 1, r.ActiveInstances())

	// Closing all but one keeps the subscription alive.
	for _, h := range handles[:n-1] {
		h.Close()
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.subscribed))
	assert.Equal(t, 1, r.ActiveInstances())

	handles[n-1].Close()
	handles[n-1].Close() // double close is safe
	assert.Equal(t, int32(0), atomic.LoadInt32(&a.subscribed))
	assert.Equal(t, 0, r.ActiveInstances())
}

func TestGetDataOnce_CoalescesConcurrentFetches(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`{"items":[]}`))
	a.fetchDelay = 20 * time.Millisecond

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := h.GetDataOnce(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, `{"items":[]}`, string(doc))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.fetchCount), "fetches are deduplicated")

	// Later reads hit the cache.
	_, err = h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.fetchCount))
}

func TestUpdateOptimistic_VisibleBeforePush(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`v1`))

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	ref, err := h.UpdateOptimistic(context.Background(), func(doc []byte) ([]byte, bool) {
		assert.Equal(t, "v1", string(doc))
		return []byte(`v2`), true
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRef(1), ref)

	// The optimistic copy is readable immediately, before the push lands.
	doc, err := h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", string(doc))

	select {
	case m := <-a.pushedCh:
		assert.Equal(t, int64(1), m.ChangeRef)
		assert.Equal(t, "v2", string(m.Document))
	case <-time.After(time.Second):
		t.Fatal("push never delivered")
	}

	// A second mutation composes on the latest cached value.
	ref, err = h.UpdateOptimistic(context.Background(), func(doc []byte) ([]byte, bool) {
		assert.Equal(t, "v2", string(doc))
		return []byte(`v3`), true
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRef(2), ref, "change refs are monotonic")
}

func TestUpdateOptimistic_CancelledMutator(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`v1`))

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	ref, err := h.UpdateOptimistic(context.Background(), func(doc []byte) ([]byte, bool) {
		return nil, false
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRef(0), ref, "cancelled mutator yields no change ref")

	doc, err := h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", string(doc), "document untouched")

	select {
	case <-a.pushedCh:
		t.Fatal("nothing should be pushed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateOptimistic_PushFailureKeepsLocalCopy(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`v1`))
	a.pushErr = errors.New("channel down")

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.UpdateOptimistic(context.Background(), func(doc []byte) ([]byte, bool) {
		return []byte(`v2`), true
	})
	require.NoError(t, err)

	<-a.pushedCh
	doc, err := h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", string(doc), "optimistic copy is not rolled back")
}

func TestApplyRemote_ServerStateWins(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter([]byte(`v1`))

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.UpdateOptimistic(context.Background(), func(doc []byte) ([]byte, bool) {
		return []byte(`local`), true
	})
	require.NoError(t, err)

	a.pushRemote([]byte(`server`))

	doc, err := h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server", string(doc), "replicated server state overwrites the optimistic copy")
}

func TestGetDataOnce_FetchError(t *testing.T) {
	r := NewRegistry(logging.NewDefault())
	a := newFakeAdapter(nil)
	a.fetchErr = errors.New("offline")

	h, err := r.Acquire("k", a)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.GetDataOnce(context.Background())
	require.Error(t, err)

	// The error is not cached: a later fetch succeeds.
	a.fetchErr = nil
	a.doc = []byte(`ok`)
	doc, err := h.GetDataOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(doc))
}
