// Package ratelimit provides a keyed fixed-window request counter. It is a
// coarse abuse deterrent, not a security boundary: state is process-local,
// so in a horizontally scaled deployment the effective limit is the
// configured limit times the instance count. Swap in a shared counter store
// behind the same Limiter contract if that matters.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the keyed counter contract consumed by the gateway and the OTP
// issuance flow.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

type record struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process Limiter backed by a mutex-guarded map. Records are
// transient and lost on restart.
type Memory struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

// NewMemory creates an empty in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Allow reports whether another action is permitted for key. A missing or
// lapsed window starts fresh with count 1; a full window denies without
// incrementing.
func (m *Memory) Allow(key string, limit int, window time.Duration) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || now.After(rec.resetAt) {
		m.records[key] = &record{count: 1, resetAt: now.Add(window)}
		return true
	}
	if rec.count >= limit {
		return false
	}
	rec.count++
	return true
}
