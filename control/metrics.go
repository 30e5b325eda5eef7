// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for accept-loop diagnostics.
// Counters register on first use and are safe for concurrent update.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRegistry holds named monotonic counters.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	updated  atomic.Int64 // unix nanos of the last Add
}

// NewMetricsRegistry creates an empty registry. Keys listed are registered
// up front so they show up in snapshots with a zero value.
func NewMetricsRegistry(keys ...string) *MetricsRegistry {
	mr := &MetricsRegistry{counters: make(map[string]*atomic.Int64, len(keys))}
	for _, k := range keys {
		mr.counters[k] = new(atomic.Int64)
	}
	return mr
}

func (mr *MetricsRegistry) counter(key string) *atomic.Int64 {
	mr.mu.RLock()
	c, ok := mr.counters[key]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.counters[key]; !ok {
		c = new(atomic.Int64)
		mr.counters[key] = c
	}
	return c
}

// Add increments key by delta and returns the new value.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	v := mr.counter(key).Add(delta)
	mr.updated.Store(time.Now().UnixNano())
	return v
}

// Get returns the current value of key, zero when unknown.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	if c, ok := mr.counters[key]; ok {
		return c.Load()
	}
	return 0
}

// GetSnapshot returns a copy of all counters.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.counters))
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated reports when a counter last changed; zero if never.
func (mr *MetricsRegistry) Updated() time.Time {
	ns := mr.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
