package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_ReplayAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewIdempotencyCache(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	req := []byte(`{"title":"a"}`)

	_, _, replay, err := c.Acquire(ctx, "", req)
	require.NoError(t, err)
	assert.False(t, replay)

	_, _, replay, err = c.Acquire(ctx, "k", req)
	require.NoError(t, err)
	require.False(t, replay)
	c.Complete("k", 200, []byte(`{"ok":true}`))

	status, body, replay, err := c.Acquire(ctx, "k", req)
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, 200, status)
	assert.Equal(t, `{"ok":true}`, string(body))

	now = now.Add(2 * time.Minute)
	_, _, replay, err = c.Acquire(ctx, "k", req)
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestIdempotencyCache_DifferentBody(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	ctx := context.Background()

	_, _, _, err := c.Acquire(ctx, "k", []byte(`{"title":"a"}`))
	require.NoError(t, err)
	c.Complete("k", 200, []byte(`{}`))

	_, _, _, err = c.Acquire(ctx, "k", []byte(`{"title":"b"}`))
	assert.ErrorIs(t, err, errIdempotencyMismatch)
}

func TestIdempotencyCache_ConcurrentRequestWaitsForOwner(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	ctx := context.Background()
	req := []byte(`{"title":"a"}`)

	_, _, replay, err := c.Acquire(ctx, "k", req)
	require.NoError(t, err)
	require.False(t, replay)

	type result struct {
		body   []byte
		replay bool
		err    error
	}
	waiter := make(chan result, 1)
	go func() {
		_, body, replay, err := c.Acquire(ctx, "k", req)
		waiter <- result{body, replay, err}
	}()

	select {
	case <-waiter:
		t.Fatal("second request did not wait for the first")
	case <-time.After(50 * time.Millisecond):
	}

	c.Complete("k", 200, []byte(`{"first":true}`))
	res := <-waiter
	require.NoError(t, res.err)
	assert.True(t, res.replay)
	assert.Equal(t, `{"first":true}`, string(res.body))
}

func TestIdempotencyCache_AbandonLetsRetryRun(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	ctx := context.Background()
	req := []byte(`{"title":"a"}`)

	_, _, _, err := c.Acquire(ctx, "k", req)
	require.NoError(t, err)

	waiter := make(chan bool, 1)
	go func() {
		_, _, replay, err := c.Acquire(ctx, "k", req)
		assert.NoError(t, err)
		waiter <- replay
	}()

	time.Sleep(20 * time.Millisecond)
	c.Abandon("k")
	assert.False(t, <-waiter)
}

func TestIdempotencyCache_WaitHonoursContext(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	req := []byte(`{}`)
	_, _, _, err := c.Acquire(context.Background(), "k", req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, _, err = c.Acquire(ctx, "k", req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
