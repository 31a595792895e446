package nonce

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbcore/internal/model"
)

type fakeCounter struct {
	mu        sync.Mutex
	confirmed uint64
	pending   uint64
	err       error
	calls     map[model.CountMode]int
}

func newFakeCounter(confirmed, pending uint64) *fakeCounter {
	return &fakeCounter{confirmed: confirmed, pending: pending, calls: make(map[model.CountMode]int)}
}

func (f *fakeCounter) Address() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000a1")
}

func (f *fakeCounter) TransactionCount(_ context.Context, mode model.CountMode) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[mode]++
	if f.err != nil {
		return 0, f.err
	}
	if mode == model.CountPending {
		return f.pending, nil
	}
	return f.confirmed, nil
}

func (f *fakeCounter) set(confirmed, pending uint64) {
	f.mu.Lock()
	f.confirmed, f.pending = confirmed, pending
	f.mu.Unlock()
}

func TestNextConcurrentIsContiguous(t *testing.T) {
	const n = 64
	c := NewCoordinator(newFakeCounter(10, 10), nil)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []uint64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := c.Next(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, nonce)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, n)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, nonce := range got {
		assert.Equal(t, uint64(10+i), nonce)
	}
}

func TestNextJumpsToPending(t *testing.T) {
	src := newFakeCounter(12, 12)
	c := NewCoordinator(src, nil)

	first, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), first)

	src.set(12, 15)
	next, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, next, uint64(15))

	cursor, ready := c.Cursor()
	assert.True(t, ready)
	assert.Equal(t, uint64(16), cursor)
}

func TestNextInitializesOnce(t *testing.T) {
	src := newFakeCounter(3, 3)
	c := NewCoordinator(src, nil)
	for i := 0; i < 3; i++ {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls[model.CountLatest])
	assert.Equal(t, 3, src.calls[model.CountPending])
}

func TestResyncAdoptsConfirmed(t *testing.T) {
	src := newFakeCounter(5, 5)
	c := NewCoordinator(src, nil)
	for i := 0; i < 4; i++ {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}

	// two of the four were rejected; the node confirmed only up to 7
	src.set(7, 7)
	<-c.ResyncAsync()

	cursor, _ := c.Cursor()
	assert.Equal(t, uint64(7), cursor)

	next, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), next)
}

func TestNextSurfacesCountErrors(t *testing.T) {
	src := newFakeCounter(0, 0)
	src.err = errors.New("rpc down")
	c := NewCoordinator(src, nil)

	_, err := c.Next(context.Background())
	require.Error(t, err)
	_, ready := c.Cursor()
	assert.False(t, ready)

	require.Error(t, c.Resync(context.Background()))
}
