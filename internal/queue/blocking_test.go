package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocking_Order(t *testing.T) {
	require := require.New(t)
	q := NewBlocking[int](4)

	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	require.Equal(10, q.Len())

	for i := 0; i < 10; i++ {
		v, err := q.Pop(context.Background(), nil, 0)
		require.NoError(err)
		require.Equal(i, v)
	}

	_, ok := q.TryPop()
	require.False(ok)
}

func TestBlocking_PopWaitsForPush(t *testing.T) {
	q := NewBlocking[string](1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push("late")
	}()

	v, err := q.Pop(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestBlocking_CancelLeavesQueueUsable(t *testing.T) {
	require := require.New(t)
	q := NewBlocking[int](1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx, nil, 0)
	require.ErrorIs(err, context.DeadlineExceeded)

	q.Push(7)
	v, err := q.Pop(context.Background(), nil, 0)
	require.NoError(err)
	require.Equal(7, v)
}

func TestBlocking_Timeout(t *testing.T) {
	q := NewBlocking[int](1)

	begin := time.Now()
	_, err := q.Pop(context.Background(), nil, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(begin), 25*time.Millisecond)
}

func TestBlocking_ProducerDone(t *testing.T) {
	require := require.New(t)
	q := NewBlocking[int](1)
	done := make(chan struct{})

	q.Push(1)
	close(done)

	// queued items are still delivered after done
	v, err := q.Pop(context.Background(), done, 0)
	require.NoError(err)
	require.Equal(1, v)

	_, err = q.Pop(context.Background(), done, 0)
	require.ErrorIs(err, ErrProducerDone)
}

func TestBlocking_Drain(t *testing.T) {
	q := NewBlocking[int](1)
	q.Push(1)
	q.Push(2)

	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestBlocking_ConcurrentConsumers(t *testing.T) {
	q := NewBlocking[int](16)

	const n = 500
	var wg sync.WaitGroup
	results := make(chan int, n)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Pop(context.Background(), nil, 200*time.Millisecond)
				if err != nil {
					return
				}
				results <- v
			}
		}()
	}

	for i := 0; i < n; i++ {
		q.Push(i)
	}

	wg.Wait()
	close(results)

	seen := make(map[int]bool, n)
	for v := range results {
		seen[v] = true
	}
	assert.Len(t, seen, n)
}
