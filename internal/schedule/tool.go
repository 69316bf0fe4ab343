package schedule

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/classpilot/tool-runtime/internal/tools"
)

// TaskTool exposes the resolver to the model. It auto-executes: the work it
// defers is what needs approval machinery, not the deferral itself.
type TaskTool struct {
	resolver *Resolver
}

func NewTaskTool(resolver *Resolver) *TaskTool {
	return &TaskTool{resolver: resolver}
}

func (t *TaskTool) Name() string { return "schedule_task" }

func (t *TaskTool) Description() string {
	return "Schedule a task for later execution: at an absolute time, after a delay in seconds, or on a recurring cron expression."
}

func (t *TaskTool) ParametersSchema() string {
	return `{"type": "no-schedule|scheduled|delayed|cron", "date": "RFC 3339 timestamp (scheduled)", "delayInSeconds": "number (delayed)", "cron": "cron expression (cron)", "description": "string"}`
}

func (t *TaskTool) ValidateArgs(args json.RawMessage) error {
	var decoded taskToolArgs
	if err := tools.DecodeArgs(args, &decoded); err != nil {
		return err
	}
	_, err := ParseTrigger(args)
	return err
}

func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var decoded taskToolArgs
	if err := tools.DecodeArgs(args, &decoded); err != nil {
		return "", err
	}
	trigger, err := ParseTrigger(args)
	if err != nil {
		return "", err
	}
	return t.resolver.Resolve(ctx, trigger, strings.TrimSpace(decoded.Description))
}

type taskToolArgs struct {
	Description string `json:"description"`
}
