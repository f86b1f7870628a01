package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/model"
)

// ServiceFailure records one service's failure within a batch run.
type ServiceFailure struct {
	ServiceID string `json:"service_id"`
	Error     string `json:"error"`
}

// RoutinaryResult summarizes one recurring-task batch run.
type RoutinaryResult struct {
	Processed    int              `json:"processed"`
	TasksCreated int              `json:"tasks_created"`
	Skipped      int              `json:"skipped"`
	Failures     []ServiceFailure `json:"failures,omitempty"`
	RanAt        time.Time        `json:"ran_at"`
}

// RunRoutinary materializes one task for every routinary service
// whose next run date has arrived, then advances each service's
// schedule. Per-service failures are collected, never fatal to the
// batch.
//
// A service far behind schedule (server downtime) spawns exactly one
// catch-up task; the next run date then jumps to the first cadence
// boundary strictly after now, so missed cycles never flood the
// board with duplicate tasks.
//
// The schedule advance is a compare-and-swap on the next run date:
// when a concurrent invocation (manual trigger racing the timer) has
// already advanced a service, this run skips it without creating a
// task.
func (s *Scheduler) RunRoutinary(ctx context.Context) (result RoutinaryResult, err error) {
	now := s.now().UTC()
	result = RoutinaryResult{RanAt: now}
	defer func() { s.recordRun(&s.lastRoutinary, now, err) }()

	services, err := s.store.GetDueRoutinaryServices(ctx, now)
	if err != nil {
		return result, fmt.Errorf("listing due routinary services: %w", err)
	}

	for _, svc := range services {
		result.Processed++

		created, err := s.runService(ctx, svc, now)
		if err != nil {
			s.logger.Warn("routinary service failed",
				zap.String("service", svc.ID),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, ServiceFailure{
				ServiceID: svc.ID,
				Error:     err.Error(),
			})
			continue
		}
		if created {
			result.TasksCreated++
		} else {
			result.Skipped++
		}
	}

	s.logger.Info("routinary run finished",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.TasksCreated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// runService handles one due service. Returns whether a task was
// created; false with nil error means a concurrent run won the CAS.
func (s *Scheduler) runService(ctx context.Context, svc model.Service, now time.Time) (bool, error) {
	if err := svc.ValidateRoutinary(); err != nil {
		return false, err
	}

	expectedNext := svc.RoutinaryNextRunDate.UTC()
	newNext := nextBoundaryAfter(expectedNext, *svc.RoutinaryFrequency, now)

	advanced, err := s.store.AdvanceRoutinarySchedule(ctx, svc.ID, expectedNext, newNext, now)
	if err != nil {
		return false, err
	}
	if !advanced {
		// Another invocation already advanced this window.
		return false, nil
	}

	// The schedule advance is already committed. If the insert below
	// fails, this cycle's task is forfeited and the failure surfaces
	// in the batch result; re-reading the schedule to retry could
	// double-fire, which is the worse failure mode.
	serviceID := svc.ID
	task := model.Task{
		WorkspaceID: svc.WorkspaceID,
		ServiceID:   &serviceID,
		Title:       fmt.Sprintf("%s — %s", svc.Name, now.Format("2006-01-02")),
		Description: svc.Description,
		Status:      model.TaskStatusTodo,
		DueDate:     &newNext,
	}
	if err := s.store.CreateTask(ctx, &task); err != nil {
		return false, fmt.Errorf("creating task for service %s: %w", svc.ID, err)
	}

	// Seed checklist items from the service template. A seeding
	// failure is a side effect: the task itself stands.
	for i, text := range svc.ChecklistTemplate {
		item := model.ChecklistItem{TaskID: task.ID, Text: text, SortOrder: i + 1}
		if err := s.store.AddChecklistItem(ctx, item); err != nil {
			s.logger.Warn("seeding checklist item failed",
				zap.String("task", task.ID),
				zap.Error(err),
			)
		}
	}

	return true, nil
}

// nextBoundaryAfter steps from the last scheduled boundary by whole
// cadence units until strictly past now. Advancing past "now" rather
// than merely past the old value is what prevents an immediate
// re-run from firing again.
func nextBoundaryAfter(last time.Time, freq model.RoutinaryFrequency, now time.Time) time.Time {
	next := freq.Next(last)
	for !next.After(now) {
		next = freq.Next(next)
	}
	return next
}
