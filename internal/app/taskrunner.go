package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classpilot/tool-runtime/internal/agentctx"
	"github.com/classpilot/tool-runtime/internal/schedule"
)

// newTaskRunner executes actions fired by the dispatcher. The scheduler only
// ever records the executeTask action. This process runs no agent loop to
// hand the payload to, so the structured log record below is the delivery of
// a fired task, not a stand-in for one; wiring a real consumer means
// replacing this runner in New. Anything other than executeTask is a data
// defect and is reported, not ignored.
func newTaskRunner(logger *slog.Logger) agentctx.ActionRunner {
	return agentctx.RunnerFunc(func(ctx context.Context, actionName, payload string) error {
		if actionName != schedule.ActionExecuteTask {
			return fmt.Errorf("unknown scheduled action %q", actionName)
		}
		logger.Info("scheduled task executed", "payload", payload)
		return nil
	})
}
