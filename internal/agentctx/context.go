package agentctx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/classpilot/tool-runtime/internal/schedule"
	"github.com/classpilot/tool-runtime/internal/store"
	"github.com/classpilot/tool-runtime/internal/toolerr"
)

// Store is the narrow persistence surface the context appends through. It
// never iterates or mutates the task store beyond this API.
type Store interface {
	CreateScheduledTask(ctx context.Context, input store.CreateScheduledTaskInput) error
}

// Context owns durable scheduled-task storage for the process. Callers pass
// it explicitly; there is no ambient process-wide lookup.
type Context struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(taskStore Store, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		store:  taskStore,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Schedule persists one task per resolved trigger. The dispatcher fires
// actionName with payload once the trigger's next run arrives.
func (c *Context) Schedule(ctx context.Context, trigger schedule.Trigger, actionName, payload string) error {
	if c == nil || c.store == nil {
		return toolerr.ErrNoActiveAgent
	}
	nextRun, err := schedule.NextRun(trigger.Type, trigger.Value(), c.now())
	if err != nil {
		return fmt.Errorf("resolve first run: %w", err)
	}
	id := "sched-" + uuid.NewString()
	if err := c.store.CreateScheduledTask(ctx, store.CreateScheduledTaskInput{
		ID:           id,
		TriggerType:  string(trigger.Type),
		TriggerValue: trigger.Value(),
		ActionName:   actionName,
		Payload:      payload,
		NextRunAt:    nextRun,
	}); err != nil {
		return fmt.Errorf("persist scheduled task: %w", err)
	}
	c.logger.Info("task scheduled",
		"task_id", id,
		"trigger_type", trigger.Type,
		"trigger_value", trigger.Value(),
		"next_run", nextRun.Format(time.RFC3339),
	)
	return nil
}
