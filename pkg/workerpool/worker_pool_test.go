//go:build !integration

package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_BoundsConcurrency(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3, BatchDelay: time.Millisecond})

	var inFlight, peak int32
	items := make([]WorkItem[int], 10)
	for i := range items {
		i := i
		items[i] = WorkItem[int]{
			ID: fmt.Sprintf("item-%d", i),
			Execute: func(ctx context.Context) (int, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return i * 2, nil
			},
		}
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.ID)
		assert.Equal(t, i*2, r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_SpacesBatches(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2, BatchDelay: 20 * time.Millisecond})

	items := make([]WorkItem[struct{}], 6)
	for i := range items {
		items[i] = WorkItem[struct{}]{Execute: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil }}
	}

	start := time.Now()
	Process(context.Background(), pool, items)

	// three batches, the first starts immediately
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestProcess_KeepsGoingOnItemFailure(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2, BatchDelay: time.Millisecond})
	items := []WorkItem[int]{
		{ID: "ok", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "bad", Execute: func(ctx context.Context) (int, error) { return 0, errors.New("boom") }},
		{ID: "ok2", Execute: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "boom")
	assert.Equal(t, 3, results[2].Result)
}

func TestProcess_CancelledContextSkipsRemaining(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1, BatchDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran int32
	items := make([]WorkItem[int], 3)
	for i := range items {
		items[i] = WorkItem[int]{Execute: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&ran, 1)
			cancel()
			return 0, nil
		}}
	}

	results := Process(ctx, pool, items)

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}
