// Package metrics provides in-memory exchange statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpSend   = "send"
	OpStream = "stream"
)

// ExchangeMetrics holds aggregated metrics for one operation kind.
type ExchangeMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	TotalInputTokens  int64
	TotalOutputTokens int64
	Failures          int64
}

// ExchangeSnapshot provides computed stats from raw metrics.
type ExchangeSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// Snapshot represents the full session statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Send          *ExchangeSnapshot
	Stream        *ExchangeSnapshot
}

// Collector aggregates in-memory exchange statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*ExchangeMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*ExchangeMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold the write lock.
func (c *Collector) getOrCreate(op string) *ExchangeMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &ExchangeMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordExchange records timing and token usage for a completed exchange.
func (c *Collector) RecordExchange(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// RecordFailure records a failed exchange.
func (c *Collector) RecordFailure(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).Failures++
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *ExchangeMetrics) *ExchangeSnapshot {
	if m == nil || (m.Count == 0 && m.Failures == 0) {
		return nil
	}

	snap := &ExchangeSnapshot{
		Count:             m.Count,
		Failures:          m.Failures,
		TotalTimeMs:       m.TotalTime.Milliseconds(),
		MaxTimeMs:         m.MaxTime.Milliseconds(),
		TotalInputTokens:  m.TotalInputTokens,
		TotalOutputTokens: m.TotalOutputTokens,
	}
	if m.Count > 0 {
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		snap.MinTimeMs = m.MinTime.Milliseconds()
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Send:          snapshotOp(c.ops[OpSend]),
		Stream:        snapshotOp(c.ops[OpStream]),
	}
}
