package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()
	m.Record("memory_search", 10*time.Millisecond, false)
	m.Record("memory_search", 30*time.Millisecond, false)
	m.Record("memory_search", 20*time.Millisecond, true)
	m.Record("memory_add", 5*time.Millisecond, false)

	snapshot := m.Snapshot()
	search := snapshot["memory_search"]
	assert.Equal(t, int64(3), search.Count)
	assert.Equal(t, int64(1), search.Errors)
	assert.Equal(t, int64(20), search.AverageMs)
	assert.Equal(t, int64(1), snapshot["memory_add"].Count)
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.Record("memory_add", time.Millisecond, false)
	m.Reset()
	assert.Empty(t, m.Snapshot())
}

func TestMetrics_ConcurrentRecord(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record("memory_search", time.Millisecond, j%10 == 0)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), m.Snapshot()["memory_search"].Count)
}
