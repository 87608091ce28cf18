package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsforge/newsforge/internal/news"
)

func TestBroker_PublishThenReceive(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	pub := broker.Publisher()

	id, err := pub.Publish(context.Background(), "pages", []byte("first"))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = pub.Publish(context.Background(), "pages", []byte("second"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = broker.Consumer("pages").Receive(ctx, func(_ context.Context, d news.Delivery) {
			mu.Lock()
			got = append(got, string(d.Data()))
			mu.Unlock()
			d.Ack()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, []string{"first", "second"}, got)
}

func TestBroker_NackRedelivers(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	_, err := broker.Publisher().Publish(context.Background(), "pages", []byte("retry-me"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		mu       sync.Mutex
		attempts int
	)
	go func() {
		_ = broker.Consumer("pages").Receive(ctx, func(_ context.Context, d news.Delivery) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				d.Nack()
				return
			}
			d.Ack()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroker_SettleIsIdempotent(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	_, err := broker.Publisher().Publish(context.Background(), "pages", []byte("once"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		mu       sync.Mutex
		attempts int
	)
	go func() {
		_ = broker.Consumer("pages").Receive(ctx, func(_ context.Context, d news.Delivery) {
			mu.Lock()
			attempts++
			mu.Unlock()
			// Ack first; the later Nack must not requeue.
			d.Ack()
			d.Nack()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, attempts)
}

func TestBroker_TopicsAreIndependent(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	pub := broker.Publisher()
	_, err := pub.Publish(context.Background(), "pages", []byte("page"))
	require.NoError(t, err)
	_, err = pub.Publish(context.Background(), "notes", []byte("note"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 1)
	go func() {
		_ = broker.Consumer("notes").Receive(ctx, func(_ context.Context, d news.Delivery) {
			d.Ack()
			got <- string(d.Data())
		})
	}()

	select {
	case data := <-got:
		require.Equal(t, "note", data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBroker_PublishAfterCloseFails(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	require.NoError(t, broker.Close())
	_, err := broker.Publisher().Publish(context.Background(), "pages", []byte("late"))
	require.Error(t, err)
}
