package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	assert.Equal(t, 5, q.Pending())

	for i := 0; i < 5; i++ {
		got, err := q.Take(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 5, q.InFlight())
}

func TestTakeBlocksUntilPut(t *testing.T) {
	q := New[string]()
	result := make(chan string, 1)

	go func() {
		item, err := q.Take(context.Background())
		if err == nil {
			result <- item
		}
	}()

	select {
	case <-result:
		t.Fatal("Take returned on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	q.Put("job")
	select {
	case got := <-result:
		assert.Equal(t, "job", got)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Put")
	}
}

func TestTakeCancelled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, q.InFlight())
}

func TestTakeCancelledWithItems(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.Put(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, 0, q.InFlight())
}

func TestJoin(t *testing.T) {
	q := New[int]()

	// An empty queue is already drained.
	require.NoError(t, q.Join(context.Background()))

	q.Put(1)
	q.Put(2)

	joined := make(chan error, 1)
	go func() { joined <- q.Join(context.Background()) }()

	for i := 0; i < 2; i++ {
		_, err := q.Take(context.Background())
		require.NoError(t, err)
	}

	select {
	case <-joined:
		t.Fatal("Join returned with items in flight")
	case <-time.After(50 * time.Millisecond):
	}

	q.Done()
	// A retry put back before Done keeps the queue from draining.
	q.Put(3)
	q.Done()

	select {
	case <-joined:
		t.Fatal("Join returned with an item pending")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Take(context.Background())
	require.NoError(t, err)
	q.Done()

	select {
	case err := <-joined:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Join did not return after drain")
	}
}

func TestJoinCancelled(t *testing.T) {
	q := New[int]()
	q.Put(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Join(ctx), context.Canceled)
}

func TestDonePanics(t *testing.T) {
	q := New[int]()
	assert.Panics(t, q.Done)

	q.Put(1)
	_, err := q.Take(context.Background())
	require.NoError(t, err)
	assert.NotPanics(t, q.Done)
	assert.Panics(t, q.Done)
}

func TestConcurrentConsumers(t *testing.T) {
	const items = 500
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Take(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[item]++
				mu.Unlock()
				q.Done()
			}
		}()
	}

	for i := 0; i < items; i++ {
		q.Put(i)
	}
	require.NoError(t, q.Join(context.Background()))
	cancel()
	wg.Wait()

	assert.Len(t, seen, items)
	for item, n := range seen {
		assert.Equal(t, 1, n, "item %d", item)
	}
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, q.InFlight())
}
