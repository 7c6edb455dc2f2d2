package orchestrator

import (
	"context"
	"time"
)

// Scheduler ticks the orchestrator on a fixed interval and interleaves a
// slower repair cadence. The overlap guard inside RunPass makes a slow pass
// delay the next tick rather than stack on top of it.
type Scheduler struct {
	orch           *Orchestrator
	interval       time.Duration
	repairInterval time.Duration
}

func NewScheduler(orch *Orchestrator, interval, repairInterval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{orch: orch, interval: interval, repairInterval: repairInterval}
}

// Run blocks until the context ends. The first pass fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var repairCh <-chan time.Time
	if s.repairInterval > 0 {
		repairTicker := time.NewTicker(s.repairInterval)
		defer repairTicker.Stop()
		repairCh = repairTicker.C
	}

	s.orch.RunPass(ctx, ModeNormal)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-repairCh:
			s.orch.RunPass(ctx, ModeRepair)
		case <-ticker.C:
			s.orch.RunPass(ctx, ModeNormal)
		}
	}
}
