package observability

import (
	"sync"
	"time"
)

// Metrics aggregates per-operation counters for the tool surface. It backs
// log summaries and tests; nothing here is exported over the wire.
type Metrics struct {
	mu  sync.Mutex
	ops map[string]*opMetrics
}

type opMetrics struct {
	count   int64
	errors  int64
	totalMs int64
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{ops: make(map[string]*opMetrics)}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the process-wide metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// Record adds one completed operation to the counters.
func (m *Metrics) Record(operation string, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[operation]
	if !ok {
		op = &opMetrics{}
		m.ops[operation] = op
	}
	op.count++
	op.totalMs += duration.Milliseconds()
	if failed {
		op.errors++
	}
}

// OperationSnapshot is a point-in-time view of one operation's counters.
type OperationSnapshot struct {
	Count     int64
	Errors    int64
	AverageMs int64
}

// Snapshot returns a copy of all per-operation counters.
func (m *Metrics) Snapshot() map[string]OperationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]OperationSnapshot, len(m.ops))
	for name, op := range m.ops {
		snapshot := OperationSnapshot{Count: op.count, Errors: op.errors}
		if op.count > 0 {
			snapshot.AverageMs = op.totalMs / op.count
		}
		out[name] = snapshot
	}
	return out
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[string]*opMetrics)
}
