package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memoryEntry is a stored value with its expiration time.
// A zero expiresAt means the entry never expires.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryProvider implements Provider using an in-process map.
// This is suitable for single-instance deployments and testing.
// A background goroutine evicts expired entries; Close stops it.
type MemoryProvider struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryProvider creates a new in-memory cache provider and starts its
// cleanup goroutine.
func NewMemoryProvider() *MemoryProvider {
	p := &MemoryProvider{
		entries:  make(map[string]memoryEntry),
		stopChan: make(chan struct{}),
	}

	p.wg.Add(1)
	go p.cleanupLoop()

	return p
}

// Get returns the value stored at key, or ErrCacheMiss when absent or
// expired.
func (p *MemoryProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, exists := p.entries[key]
	if !exists || e.expired(time.Now()) {
		return "", ErrCacheMiss
	}
	return e.value, nil
}

// Set stores the value at key. A non-positive ttl means no expiration.
func (p *MemoryProvider) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return nil
}

// SetNX stores the value only when the key is absent or expired.
// The check and write happen under a single lock acquisition.
func (p *MemoryProvider) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, exists := p.entries[key]; exists && !e.expired(time.Now()) {
		return false, nil
	}

	p.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (p *MemoryProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, key)
	return nil
}

// Exists reports whether the key is present and unexpired.
func (p *MemoryProvider) Exists(ctx context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, exists := p.entries[key]
	return exists && !e.expired(time.Now()), nil
}

// Increment adds delta to the counter at key and returns the new value.
// The ttl is applied only when the key is created by this call, so a
// counter's window is anchored to its first increment.
func (p *MemoryProvider) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	e, exists := p.entries[key]
	if !exists || e.expired(now) {
		p.entries[key] = memoryEntry{value: strconv.FormatInt(delta, 10), expiresAt: expiry(ttl)}
		return delta, nil
	}

	current, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, err
	}

	next := current + delta
	e.value = strconv.FormatInt(next, 10)
	p.entries[key] = e
	return next, nil
}

// Expire resets the key's TTL. Missing keys are ignored.
func (p *MemoryProvider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, exists := p.entries[key]
	if !exists || e.expired(time.Now()) {
		return nil
	}

	e.expiresAt = expiry(ttl)
	p.entries[key] = e
	return nil
}

// TTL returns the remaining lifetime of the key, or zero for missing,
// expired or non-expiring entries.
func (p *MemoryProvider) TTL(ctx context.Context, key string) (time.Duration, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := time.Now()
	e, exists := p.entries[key]
	if !exists || e.expired(now) || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

// Ping always succeeds for the in-memory provider.
func (p *MemoryProvider) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (p *MemoryProvider) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()
	})
	return nil
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (p *MemoryProvider) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

func (p *MemoryProvider) cleanupLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.cleanup()
		}
	}
}

func (p *MemoryProvider) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for key, e := range p.entries {
		if e.expired(now) {
			delete(p.entries, key)
		}
	}
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

var _ Provider = (*MemoryProvider)(nil)
