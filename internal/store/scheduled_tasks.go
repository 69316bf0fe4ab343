package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrScheduledTaskNotFound = errors.New("scheduled task not found")

const (
	ScheduledTaskStatusActive = "active"
	ScheduledTaskStatusFired  = "fired"
)

type ScheduledTask struct {
	ID           string
	TriggerType  string
	TriggerValue string
	ActionName   string
	Payload      string
	Status       string
	NextRunAt    time.Time
	LastRunAt    time.Time
	FiredCount   int
	LastError    string
	CreatedAt    string
	UpdatedAt    time.Time
}

type CreateScheduledTaskInput struct {
	ID           string
	TriggerType  string
	TriggerValue string
	ActionName   string
	Payload      string
	NextRunAt    time.Time
}

func (s *Store) CreateScheduledTask(ctx context.Context, input CreateScheduledTaskInput) error {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return fmt.Errorf("scheduled task id is required")
	}
	if strings.TrimSpace(input.ActionName) == "" {
		return fmt.Errorf("scheduled task action name is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO scheduled_tasks (
			id, trigger_type, trigger_value, action_name, payload,
			status, next_run_unix, updated_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(input.TriggerType),
		input.TriggerValue,
		strings.TrimSpace(input.ActionName),
		input.Payload,
		ScheduledTaskStatusActive,
		nullTimeUnix(input.NextRunAt),
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("create scheduled task: %w", err)
	}
	return nil
}

// ListDueScheduledTasks returns active tasks whose next run is at or before now.
func (s *Store) ListDueScheduledTasks(ctx context.Context, now time.Time, limit int) ([]ScheduledTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	rows, err := s.db.QueryContext(
		ctx,
		scheduledTaskSelect+`
		 WHERE status = ? AND next_run_unix IS NOT NULL AND next_run_unix <= ?
		 ORDER BY next_run_unix ASC
		 LIMIT ?`,
		ScheduledTaskStatusActive,
		now.UTC().Unix(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled tasks: %w", err)
	}
	defer rows.Close()
	return scanScheduledTasks(rows)
}

type ListScheduledTasksInput struct {
	Status string
	Limit  int
}

func (s *Store) ListScheduledTasks(ctx context.Context, input ListScheduledTasksInput) ([]ScheduledTask, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	status := strings.TrimSpace(input.Status)

	query := scheduledTaskSelect
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	defer rows.Close()
	return scanScheduledTasks(rows)
}

func (s *Store) LookupScheduledTask(ctx context.Context, id string) (ScheduledTask, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ScheduledTask{}, ErrScheduledTaskNotFound
	}
	row := s.db.QueryRowContext(ctx, scheduledTaskSelect+` WHERE id = ?`, id)
	task, err := scanScheduledTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduledTask{}, ErrScheduledTaskNotFound
	}
	if err != nil {
		return ScheduledTask{}, fmt.Errorf("lookup scheduled task: %w", err)
	}
	return task, nil
}

// MarkScheduledTaskFired records one firing. A zero nextRunAt retires the
// task; a future nextRunAt keeps it active for the next occurrence (cron).
func (s *Store) MarkScheduledTaskFired(ctx context.Context, id string, firedAt, nextRunAt time.Time, lastError string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrScheduledTaskNotFound
	}
	if firedAt.IsZero() {
		firedAt = time.Now().UTC()
	}
	status := ScheduledTaskStatusActive
	if nextRunAt.IsZero() {
		status = ScheduledTaskStatusFired
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE scheduled_tasks
		 SET status = ?,
		     next_run_unix = ?,
		     last_run_unix = ?,
		     fired_count = fired_count + 1,
		     last_error = ?,
		     updated_at_unix = ?
		 WHERE id = ?`,
		status,
		nullTimeUnix(nextRunAt),
		firedAt.UTC().Unix(),
		nullIfEmpty(strings.TrimSpace(lastError)),
		time.Now().UTC().Unix(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark scheduled task fired: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected == 0 {
		return ErrScheduledTaskNotFound
	}
	return nil
}

const scheduledTaskSelect = `
	SELECT id, trigger_type, trigger_value, action_name, payload, status,
	       next_run_unix, last_run_unix, fired_count, last_error,
	       created_at, updated_at_unix
	  FROM scheduled_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledTask(row rowScanner) (ScheduledTask, error) {
	var task ScheduledTask
	var nextRunUnix sql.NullInt64
	var lastRunUnix sql.NullInt64
	var lastError sql.NullString
	var updatedAtUnix sql.NullInt64
	if err := row.Scan(
		&task.ID,
		&task.TriggerType,
		&task.TriggerValue,
		&task.ActionName,
		&task.Payload,
		&task.Status,
		&nextRunUnix,
		&lastRunUnix,
		&task.FiredCount,
		&lastError,
		&task.CreatedAt,
		&updatedAtUnix,
	); err != nil {
		return ScheduledTask{}, err
	}
	task.NextRunAt = timeFromUnix(nextRunUnix)
	task.LastRunAt = timeFromUnix(lastRunUnix)
	task.LastError = lastError.String
	task.UpdatedAt = timeFromUnix(updatedAtUnix)
	return task, nil
}

func scanScheduledTasks(rows *sql.Rows) ([]ScheduledTask, error) {
	var tasks []ScheduledTask
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled tasks: %w", err)
	}
	return tasks, nil
}
