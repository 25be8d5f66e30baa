package handlers

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"time"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	defaultIdempotencyTTL = 10 * time.Minute
)

var errIdempotencyMismatch = errors.New("idempotency key reused with a different request")

type idempotentEntry struct {
	fingerprint [sha256.Size]byte
	done        chan struct{} // closed once the owning request finishes
	complete    bool
	status      int
	body        []byte
	expires     time.Time
}

// IdempotencyCache remembers successful create responses by client-supplied
// key so a retried publish replays the first result instead of creating a
// conflict. A key is claimed before the create runs; concurrent requests
// with the same key wait for the owner and then replay its response.
type IdempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*idempotentEntry
}

func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*idempotentEntry),
	}
}

// Acquire either returns a stored response for key (replay is true) or
// claims key for the caller, who must then call Complete or Abandon. An
// empty key is never claimed. A key stored for a different request body
// yields errIdempotencyMismatch.
func (c *IdempotencyCache) Acquire(ctx context.Context, key string, body []byte) (status int, resp []byte, replay bool, err error) {
	if key == "" {
		return 0, nil, false, nil
	}
	fp := sha256.Sum256(body)
	for {
		c.mu.Lock()
		c.evictLocked()
		entry, ok := c.entries[key]
		if !ok {
			c.entries[key] = &idempotentEntry{fingerprint: fp, done: make(chan struct{})}
			c.mu.Unlock()
			return 0, nil, false, nil
		}
		if entry.fingerprint != fp {
			c.mu.Unlock()
			return 0, nil, false, errIdempotencyMismatch
		}
		if entry.complete {
			c.mu.Unlock()
			return entry.status, entry.body, true, nil
		}
		done := entry.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return 0, nil, false, ctx.Err()
		}
	}
}

// Complete stores the response for a claimed key and wakes any waiters.
func (c *IdempotencyCache) Complete(key string, status int, body []byte) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.complete {
		return
	}
	entry.complete = true
	entry.status = status
	entry.body = body
	entry.expires = c.now().Add(c.ttl)
	close(entry.done)
}

// Abandon releases a claimed key without storing a response, so a later
// retry runs the request again.
func (c *IdempotencyCache) Abandon(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.complete {
		return
	}
	delete(c.entries, key)
	close(entry.done)
}

func (c *IdempotencyCache) evictLocked() {
	now := c.now()
	for k, entry := range c.entries {
		if entry.complete && now.After(entry.expires) {
			delete(c.entries, k)
		}
	}
}
