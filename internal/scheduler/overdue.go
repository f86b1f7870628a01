package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// OverdueResult summarizes one overdue sweep.
type OverdueResult struct {
	// Marked is the number of tasks newly flagged overdue.
	Marked int64 `json:"marked"`

	// Cleared is the number of tasks whose stale overdue flag was
	// removed (due date moved, or status left the open set).
	Cleared int64 `json:"cleared"`

	RanAt time.Time `json:"ran_at"`
}

// RunOverdue flags open tasks whose due date fell before the start of
// today (UTC) and clears flags that no longer apply. Idempotent:
// re-running with no newly-overdue tasks reports zero marked.
func (s *Scheduler) RunOverdue(ctx context.Context) (result OverdueResult, err error) {
	now := s.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	result = OverdueResult{RanAt: now}
	defer func() { s.recordRun(&s.lastOverdue, now, err) }()

	marked, err := s.store.MarkOverdueTasks(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("marking overdue tasks: %w", err)
	}
	result.Marked = marked

	cleared, err := s.store.ClearOverdueFlags(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("clearing stale overdue flags: %w", err)
	}
	result.Cleared = cleared

	s.logger.Info("overdue sweep finished",
		zap.Int64("marked", marked),
		zap.Int64("cleared", cleared),
	)
	return result, nil
}
