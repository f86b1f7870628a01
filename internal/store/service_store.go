package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/workboard/internal/model"
)

// CreateService inserts a new service. Generates a UUID if ID is empty.
// Routinary services must satisfy the routinary field invariant.
func (s *SQLiteStore) CreateService(ctx context.Context, svc model.Service) error {
	if strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	if err := svc.ValidateRoutinary(); err != nil {
		return err
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now

	template, err := json.Marshal(svc.ChecklistTemplate)
	if err != nil {
		return fmt.Errorf("marshaling checklist template: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (
			id, workspace_id, name, description,
			is_routinary, routinary_frequency, routinary_start_date,
			routinary_next_run_date, routinary_last_run_date,
			checklist_template, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.WorkspaceID, svc.Name, svc.Description,
		boolToInt(svc.IsRoutinary), freqOrNil(svc.RoutinaryFrequency),
		utcOrNil(svc.RoutinaryStartDate), utcOrNil(svc.RoutinaryNextRunDate),
		utcOrNil(svc.RoutinaryLastRunDate),
		string(template), svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating service %s: %w", svc.Name, err)
	}
	return nil
}

// UpdateService updates an existing service by ID.
func (s *SQLiteStore) UpdateService(ctx context.Context, svc model.Service) error {
	if strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if err := svc.ValidateRoutinary(); err != nil {
		return err
	}
	svc.UpdatedAt = time.Now().UTC()

	template, err := json.Marshal(svc.ChecklistTemplate)
	if err != nil {
		return fmt.Errorf("marshaling checklist template: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE services SET
			name = ?, description = ?,
			is_routinary = ?, routinary_frequency = ?, routinary_start_date = ?,
			routinary_next_run_date = ?, routinary_last_run_date = ?,
			checklist_template = ?, updated_at = ?
		WHERE id = ?`,
		svc.Name, svc.Description,
		boolToInt(svc.IsRoutinary), freqOrNil(svc.RoutinaryFrequency),
		utcOrNil(svc.RoutinaryStartDate), utcOrNil(svc.RoutinaryNextRunDate),
		utcOrNil(svc.RoutinaryLastRunDate),
		string(template), svc.UpdatedAt,
		svc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating service %s: %w", svc.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetServiceByID retrieves a single service by ID.
func (s *SQLiteStore) GetServiceByID(ctx context.Context, id string) (*model.Service, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM services WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting service %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting service %s: %w", id, err)
		}
		return nil, ErrNotFound
	}
	svc, err := scanService(rows)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// GetServices retrieves all services in a workspace ordered by name.
func (s *SQLiteStore) GetServices(ctx context.Context, workspaceID string) ([]model.Service, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM services WHERE workspace_id = ? ORDER BY name",
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying services of workspace %s: %w", workspaceID, err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// GetDueRoutinaryServices retrieves routinary services whose next run
// date is at or before now, ordered by next run date.
func (s *SQLiteStore) GetDueRoutinaryServices(ctx context.Context, now time.Time) ([]model.Service, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT * FROM services
		WHERE is_routinary = 1 AND routinary_next_run_date <= ?
		ORDER BY routinary_next_run_date`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due routinary services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// AdvanceRoutinarySchedule advances a routinary service's schedule
// with an optimistic concurrency check: the update applies only if
// routinary_next_run_date still equals expectedNextRun. Returns false
// when a concurrent invocation already advanced the schedule.
func (s *SQLiteStore) AdvanceRoutinarySchedule(
	ctx context.Context,
	serviceID string,
	expectedNextRun, newNextRun, lastRun time.Time,
) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE services SET
			routinary_next_run_date = ?,
			routinary_last_run_date = ?,
			updated_at = ?
		WHERE id = ? AND routinary_next_run_date = ?`,
		newNextRun.UTC(), lastRun.UTC(), time.Now().UTC(),
		serviceID, expectedNextRun.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("advancing schedule of service %s: %w", serviceID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected for service %s: %w", serviceID, err)
	}
	return rows == 1, nil
}

// scanService scans a service row from a sqlx.Rows result set.
func scanService(rows *sqlx.Rows) (model.Service, error) {
	var (
		svc         model.Service
		isRoutinary int
		frequency   *string
		template    string
	)

	err := rows.Scan(
		&svc.ID, &svc.WorkspaceID, &svc.Name, &svc.Description,
		&isRoutinary, &frequency, &svc.RoutinaryStartDate,
		&svc.RoutinaryNextRunDate, &svc.RoutinaryLastRunDate,
		&template, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		return model.Service{}, fmt.Errorf("scanning service row: %w", err)
	}

	svc.IsRoutinary = isRoutinary != 0
	if frequency != nil {
		f := model.RoutinaryFrequency(*frequency)
		svc.RoutinaryFrequency = &f
	}
	if template != "" {
		if err := json.Unmarshal([]byte(template), &svc.ChecklistTemplate); err != nil {
			return model.Service{}, fmt.Errorf("unmarshaling checklist template: %w", err)
		}
	}

	return svc, nil
}

// freqOrNil unwraps an optional frequency for storage.
func freqOrNil(f *model.RoutinaryFrequency) *string {
	if f == nil {
		return nil
	}
	v := string(*f)
	return &v
}

// utcOrNil normalizes an optional timestamp to UTC for storage.
func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
