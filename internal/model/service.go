package model

import (
	"fmt"
	"time"
)

// RoutinaryFrequency is the cadence at which a routinary service
// spawns new tasks.
type RoutinaryFrequency string

const (
	FrequencyDaily   RoutinaryFrequency = "daily"
	FrequencyWeekly  RoutinaryFrequency = "weekly"
	FrequencyMonthly RoutinaryFrequency = "monthly"
)

// Valid reports whether the frequency is one of the known cadences.
func (f RoutinaryFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Next returns the run date one cadence unit after t.
func (f RoutinaryFrequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// Service is a project inside a workspace. A routinary service
// spawns a fresh task on a fixed cadence.
type Service struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// IsRoutinary marks the service as a recurring-task template.
	// When true, RoutinaryFrequency and RoutinaryNextRunDate are
	// always non-nil.
	IsRoutinary          bool                `json:"is_routinary" db:"is_routinary"`
	RoutinaryFrequency   *RoutinaryFrequency `json:"routinary_frequency,omitempty" db:"routinary_frequency"`
	RoutinaryStartDate   *time.Time          `json:"routinary_start_date,omitempty" db:"routinary_start_date"`
	RoutinaryNextRunDate *time.Time          `json:"routinary_next_run_date,omitempty" db:"routinary_next_run_date"`
	RoutinaryLastRunDate *time.Time          `json:"routinary_last_run_date,omitempty" db:"routinary_last_run_date"`

	// ChecklistTemplate holds the item texts seeded into each task
	// the scheduler spawns for this service.
	ChecklistTemplate []string `json:"checklist_template,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidateRoutinary checks the routinary field invariant: a routinary
// service must carry a valid frequency and a next run date.
func (s Service) ValidateRoutinary() error {
	if !s.IsRoutinary {
		return nil
	}
	if s.RoutinaryFrequency == nil || !s.RoutinaryFrequency.Valid() {
		return fmt.Errorf("routinary service %s: missing or invalid frequency", s.ID)
	}
	if s.RoutinaryNextRunDate == nil {
		return fmt.Errorf("routinary service %s: missing next run date", s.ID)
	}
	return nil
}
