package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashContent(t *testing.T) {
	hash := HashContent("alice", "likes coffee")

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashContent("alice", "likes coffee"), "deterministic")
	assert.NotEqual(t, hash, HashContent("bob", "likes coffee"), "owner-scoped")
	assert.NotEqual(t, hash, HashContent("alice", "likes tea"))
}

func TestFallbackHeat(t *testing.T) {
	now := time.Now().Unix()
	ago := func(d time.Duration) int64 { return now - int64(d.Seconds()) }

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"Fresh", time.Hour, 1.0},
		{"SixHourBoundary", 6 * time.Hour, 1.0},
		{"HalfDay", 12 * time.Hour, 0.85},
		{"DayBoundary", 24 * time.Hour, 0.85},
		{"TwoDays", 36 * time.Hour, 0.7},
		{"FiveDays", 5 * 24 * time.Hour, 0.5},
		{"WeekBoundary", 7 * 24 * time.Hour, 0.5},
		{"Month", 30 * 24 * time.Hour, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FallbackHeat(ago(tt.age), now), 1e-9)
		})
	}
}

func TestEffectiveHeat(t *testing.T) {
	now := time.Now().Unix()

	heat := 0.42
	explicit := &MemoryRecord{Heat: &heat, CreatedTs: now}
	assert.InDelta(t, 0.42, EffectiveHeat(explicit, now), 1e-9, "explicit heat wins over fallback")

	legacy := &MemoryRecord{CreatedTs: now - int64((30 * 24 * time.Hour).Seconds())}
	assert.InDelta(t, 0.3, EffectiveHeat(legacy, now), 1e-9)
}
