// Package decay runs the periodic heat-decay sweep.
package decay

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearthmem/hearth/server/service/memory"
)

type Runner struct {
	heat     *memory.HeatService
	interval time.Duration
}

// NewRunner creates a decay runner. The sweep is monotone and clamped at the
// heat floor, so a missed or repeated run self-corrects over time.
func NewRunner(heat *memory.HeatService, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Runner{heat: heat, interval: interval}
}

// Run starts the background sweep. It blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("decay runner stopped")
			return
		}
	}
}

// RunOnce performs a single sweep (for manual or cron-style triggering).
// Failures are logged, not fatal: decay is non-critical and the next run
// converges to the same clamped floor.
func (r *Runner) RunOnce(ctx context.Context) {
	start := time.Now()
	touched, err := r.heat.ApplyDecay(ctx)
	if err != nil {
		slog.Error("decay sweep failed", "error", err)
		return
	}
	slog.Info("decay sweep completed",
		"records", touched,
		"duration_ms", time.Since(start).Milliseconds())
}
