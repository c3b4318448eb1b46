package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/store"
)

// Pruner trims old snapshots of one project on a cron schedule.
type Pruner struct {
	store   store.Store
	project string
	keep    int
	logger  *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPruner creates a Pruner that keeps the newest keep snapshots.
func NewPruner(s store.Store, project string, keep int, logger *slog.Logger) *Pruner {
	return &Pruner{store: s, project: project, keep: keep, logger: logger}
}

// Start schedules pruning with a standard five-field cron expression.
func (p *Pruner) Start(ctx context.Context, schedule string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("pruner already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { p.Prune(ctx) }); err != nil {
		return fmt.Errorf("parse prune schedule %q: %w", schedule, err)
	}
	c.Start()
	p.cron = c
	p.logger.InfoContext(ctx, "snapshot pruner started", slog.String("schedule", schedule), slog.Int("keep", p.keep))
	return nil
}

// Prune runs one pruning pass and returns the number of snapshots removed.
// The database is vacuumed after a pass that removed anything.
func (p *Pruner) Prune(ctx context.Context) int64 {
	ctx = logging.WithProject(ctx, p.project)
	n, err := p.store.PruneSnapshots(ctx, p.project, p.keep)
	if err != nil {
		p.logger.ErrorContext(ctx, "prune snapshots failed", slog.String("error", err.Error()))
		return 0
	}
	if n == 0 {
		return 0
	}
	p.logger.InfoContext(ctx, "pruned snapshots", slog.Int64("removed", n))
	if err := p.store.Vacuum(ctx); err != nil {
		p.logger.WarnContext(ctx, "vacuum after prune failed", slog.String("error", err.Error()))
	}
	return n
}

// Stop waits for a running prune to finish and halts the schedule.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.cron = nil
	p.logger.Info("snapshot pruner stopped")
}
