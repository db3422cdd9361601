package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	source int
	text   string
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []queue.Policy{queue.DropNewest, queue.DropOldest, queue.Block} {
		got, err := queue.ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := queue.ParsePolicy("spill")
	assert.True(t, errors.HasCode(err, queue.ErrInvalidPolicy))
}

func TestDropNewestRetainsFirstItems(t *testing.T) {
	var dropped []message
	q := queue.New[message](16, queue.WithDropCallback[message](func(m message) {
		dropped = append(dropped, m)
	}))

	for i := range 20 {
		q.Offer(message{source: i % 6, text: "msg"})
	}

	assert.Equal(t, 16, q.Len())
	assert.Equal(t, 16, q.Cap())
	assert.Len(t, dropped, 4)

	stats := q.Stats()
	assert.Equal(t, uint64(16), stats.Enqueued)
	assert.Equal(t, uint64(4), stats.Dropped)

	first, ok := q.TryTake()
	require.True(t, ok)
	assert.Equal(t, 0, first.source)
}

func TestDropOldestEvictsHead(t *testing.T) {
	q := queue.New[int](3, queue.WithPolicy[int](queue.DropOldest))

	for i := range 5 {
		assert.True(t, q.Offer(i))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(2), q.Stats().Dropped)

	var got []int
	for {
		v, ok := q.TryTake()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestFIFOOrder(t *testing.T) {
	q := queue.New[int](8)
	ctx := context.Background()

	for i := range 8 {
		require.NoError(t, q.Put(ctx, i))
	}
	for i := range 8 {
		v, err := q.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestPutDropNewestReturnsDropped(t *testing.T) {
	q := queue.New[int](1)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, 1))
	err := q.Put(ctx, 2)
	assert.True(t, errors.HasCode(err, queue.ErrDropped))
}

func TestBlockWaitsForSpace(t *testing.T) {
	q := queue.New[int](1, queue.WithPolicy[int](queue.Block))
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, 1))

	done := make(chan error, 1)
	go func() {
		done <- q.Put(ctx, 2)
	}()

	select {
	case <-done:
		t.Fatal("put returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, <-done)
	v, err = q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Zero(t, q.Stats().Dropped)
}

func TestBlockTimeout(t *testing.T) {
	q := queue.New[int](1,
		queue.WithPolicy[int](queue.Block),
		queue.WithTimeout[int](20*time.Millisecond),
	)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, 1))
	err := q.Put(ctx, 2)
	assert.True(t, errors.HasCode(err, queue.ErrTimeout))
	assert.Equal(t, uint64(1), q.Stats().TimedOut)
	assert.Equal(t, 1, q.Len())
}

func TestBlockHonorsContext(t *testing.T) {
	q := queue.New[int](1, queue.WithPolicy[int](queue.Block))
	require.NoError(t, q.Put(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Put(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTakeHonorsContext(t *testing.T) {
	q := queue.New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDrainsBufferedItems(t *testing.T) {
	q := queue.New[string](4)
	ctx := context.Background()

	q.Offer("a")
	q.Offer("b")
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Offer("c"))

	err := q.Put(ctx, "d")
	assert.True(t, errors.HasCode(err, queue.ErrClosed))

	v, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = q.Take(ctx)
	assert.True(t, errors.HasCode(err, queue.ErrClosed))
}

func TestCloseWakesBlockedConsumer(t *testing.T) {
	q := queue.New[int](1)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		assert.True(t, errors.HasCode(err, queue.ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("consumer not woken by close")
	}
}

func TestConcurrentProducersNeverExceedCapacity(t *testing.T) {
	const capacity = 8
	q := queue.New[int](capacity, queue.WithPolicy[int](queue.DropOldest))

	var wg sync.WaitGroup
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				q.Offer(p*1000 + i)
				assert.LessOrEqual(t, q.Len(), capacity)
			}
		}()
	}
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, uint64(2000), stats.Enqueued)
	assert.Equal(t, stats.Enqueued-uint64(q.Len()), stats.Dropped)
}

func TestCapacityFloor(t *testing.T) {
	q := queue.New[int](0)
	assert.Equal(t, 1, q.Cap())
}
