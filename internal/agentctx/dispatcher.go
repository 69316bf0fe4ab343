package agentctx

import (
	"context"
	"log/slog"
	"time"

	"github.com/classpilot/tool-runtime/internal/schedule"
	"github.com/classpilot/tool-runtime/internal/store"
)

// DispatcherStore is what the poll loop needs from persistence.
type DispatcherStore interface {
	ListDueScheduledTasks(ctx context.Context, now time.Time, limit int) ([]store.ScheduledTask, error)
	MarkScheduledTaskFired(ctx context.Context, id string, firedAt, nextRunAt time.Time, lastError string) error
}

// ActionRunner executes the named action when a trigger fires.
type ActionRunner interface {
	Run(ctx context.Context, actionName, payload string) error
}

// RunnerFunc adapts a function to the ActionRunner interface.
type RunnerFunc func(ctx context.Context, actionName, payload string) error

func (f RunnerFunc) Run(ctx context.Context, actionName, payload string) error {
	return f(ctx, actionName, payload)
}

// Dispatcher polls for due scheduled tasks and fires them. One-shot triggers
// retire after firing; cron triggers are rescheduled to their next occurrence.
type Dispatcher struct {
	store        DispatcherStore
	runner       ActionRunner
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewDispatcher(taskStore DispatcherStore, runner ActionRunner, pollInterval time.Duration, logger *slog.Logger) *Dispatcher {
	if pollInterval < time.Second {
		pollInterval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:        taskStore,
		runner:       runner,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if d.store == nil || d.runner == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	d.logger.Info("task dispatcher started", "poll_interval", d.pollInterval.String())
	for {
		if ctx.Err() != nil {
			d.logger.Info("task dispatcher stopped")
			return nil
		}
		if err := d.ProcessDue(ctx); err != nil {
			d.logger.Error("task dispatcher poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			d.logger.Info("task dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessDue fires every task whose trigger has arrived. Exported so tests
// and recovery paths can drive one cycle without the ticker.
func (d *Dispatcher) ProcessDue(ctx context.Context) error {
	now := time.Now().UTC()
	tasks, err := d.store.ListDueScheduledTasks(ctx, now, 20)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		d.fire(ctx, task, now)
	}
	return nil
}

func (d *Dispatcher) fire(ctx context.Context, task store.ScheduledTask, now time.Time) {
	var lastError string
	if err := d.runner.Run(ctx, task.ActionName, task.Payload); err != nil {
		lastError = err.Error()
		d.logger.Error("scheduled action failed",
			"task_id", task.ID,
			"action", task.ActionName,
			"error", err,
		)
	} else {
		d.logger.Info("scheduled action fired", "task_id", task.ID, "action", task.ActionName)
	}

	nextRun := time.Time{}
	if task.TriggerType == string(schedule.TriggerCron) {
		next, err := schedule.NextRun(schedule.TriggerCron, task.TriggerValue, now)
		if err != nil {
			// A cron expression that validated at schedule time should keep
			// parsing; retire the task rather than spinning on it.
			d.logger.Error("cron reschedule failed", "task_id", task.ID, "error", err)
			if lastError == "" {
				lastError = err.Error()
			}
		} else {
			nextRun = next
		}
	}

	if err := d.store.MarkScheduledTaskFired(ctx, task.ID, now, nextRun, lastError); err != nil {
		d.logger.Error("mark scheduled task fired failed", "task_id", task.ID, "error", err)
	}
}
