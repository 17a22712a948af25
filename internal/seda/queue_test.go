package seda

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/seda/internal/errors"
)

func TestLinkedQueue_FIFO(t *testing.T) {
	q := NewLinkedQueue[int]()
	for i := range 200 {
		q.Put(i)
	}
	require.Equal(t, 200, q.Len())

	for i := range 200 {
		got, ok := q.Poll()
		require.True(t, ok)
		require.Equal(t, i, got)
	}
	_, ok := q.Poll()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestLinkedQueue_InterleavedPutPoll(t *testing.T) {
	q := NewLinkedQueue[int]()
	next := 0
	for i := range 1000 {
		q.Put(i)
		if i%3 == 0 {
			got, ok := q.Poll()
			require.True(t, ok)
			require.Equal(t, next, got)
			next++
		}
	}
	for q.Len() > 0 {
		got, _ := q.Poll()
		require.Equal(t, next, got)
		next++
	}
	assert.Equal(t, 1000, next)
}

func TestLinkedQueue_TakeWaitsForPut(t *testing.T) {
	q := NewLinkedQueue[string]()

	got := make(chan string, 1)
	go func() {
		msg, err := q.Take(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put("hello")

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Put")
	}
}

func TestLinkedQueue_TakeInterrupted(t *testing.T) {
	q := NewLinkedQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx)
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, errors.ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, errors.IsRetryable(err))
	case <-time.After(time.Second):
		t.Fatal("Take did not return after cancel")
	}
}

func TestLinkedQueue_TakePrefersQueuedMessage(t *testing.T) {
	q := NewLinkedQueue[int]()
	q.Put(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestLinkedQueue_ConcurrentProducersConsumers(t *testing.T) {
	const producers, perProducer, consumers = 8, 500, 4
	q := NewLinkedQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[int]int)
	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)

	for range consumers {
		go func() {
			for {
				v, err := q.Take(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
				consumed.Done()
			}
		}()
	}

	var wg sync.WaitGroup
	for p := range producers {
		wg.Go(func() {
			for i := range perProducer {
				q.Put(p*perProducer + i)
			}
		})
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumed.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("only %d of %d messages consumed", len(seen), producers*perProducer)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, producers*perProducer)
	for v, n := range seen {
		if n != 1 {
			t.Errorf("message %d consumed %d times", v, n)
		}
	}
}
