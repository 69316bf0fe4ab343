package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classpilot/tool-runtime/internal/toolerr"
)

// ActionExecuteTask is the fixed action every resolved trigger fires.
const ActionExecuteTask = "executeTask"

// NoScheduleResult is returned verbatim for the no-schedule probe.
const NoScheduleResult = "Not a valid schedule input"

// AgentContext owns durable task storage and firing. The resolver only
// appends through this narrow entry point.
type AgentContext interface {
	Schedule(ctx context.Context, trigger Trigger, actionName, payload string) error
}

// Resolver converts a parsed trigger into a durable scheduling instruction.
type Resolver struct {
	agent  AgentContext
	logger *slog.Logger
}

// NewResolver requires an agent context up front; absence is a configuration
// defect, not a runtime lookup failure.
func NewResolver(agent AgentContext, logger *slog.Logger) (*Resolver, error) {
	if agent == nil {
		return nil, toolerr.ErrNoActiveAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{agent: agent, logger: logger}, nil
}

// Resolve classifies the trigger and schedules the executeTask action. A
// failing Schedule call is reported back as a tool result string, never
// propagated: the model sees a failed-but-completed call.
func (r *Resolver) Resolve(ctx context.Context, trigger Trigger, description string) (string, error) {
	if r == nil || r.agent == nil {
		return "", toolerr.ErrNoActiveAgent
	}
	switch trigger.Type {
	case TriggerNone:
		return NoScheduleResult, nil
	case TriggerScheduled, TriggerDelayed, TriggerCron:
		if err := r.agent.Schedule(ctx, trigger, ActionExecuteTask, description); err != nil {
			r.logger.Error("schedule task failed",
				"trigger_type", trigger.Type,
				"trigger_value", trigger.Value(),
				"error", err,
			)
			return fmt.Sprintf("Failed to schedule task: %v", err), nil
		}
		return fmt.Sprintf("Scheduled %s task %q with trigger %q", trigger.Type, ActionExecuteTask, trigger.Value()), nil
	default:
		return "", fmt.Errorf("%w: unrecognized trigger type %q", toolerr.ErrInvalidSchedule, trigger.Type)
	}
}
