package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/classpilot/tool-runtime/internal/gate"
	"github.com/classpilot/tool-runtime/internal/toolerr"
	"github.com/classpilot/tool-runtime/internal/tools"
)

// guardianMessageTool sends a message to a student's guardians. Outbound
// messages on behalf of the school need a human sign-off, so the tool is
// confirmation-gated: dispatch parks the call and only an approved decision
// runs Deliver.
type guardianMessageTool struct{}

func newGuardianMessageTool() *guardianMessageTool { return &guardianMessageTool{} }

func (t *guardianMessageTool) Name() string { return "send_guardian_message" }

func (t *guardianMessageTool) Description() string {
	return "Send a message to the guardians of a student. Requires operator approval before anything is sent."
}

func (t *guardianMessageTool) ParametersSchema() string {
	return `{"studentId": "student id, required", "message": "message body, required"}`
}

func (t *guardianMessageTool) RequiresConfirmation() bool { return true }

type guardianMessageArgs struct {
	StudentID string `json:"studentId"`
	Message   string `json:"message"`
}

func (t *guardianMessageTool) ValidateArgs(args json.RawMessage) error {
	decoded, err := decodeGuardianArgs(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(decoded.StudentID) == "" {
		return toolerr.NewValidation("studentId", "is required")
	}
	if strings.TrimSpace(decoded.Message) == "" {
		return toolerr.NewValidation("message", "is required")
	}
	return nil
}

// Execute is unreachable through the gate: confirmation-gated calls run via
// the executor table after approval.
func (t *guardianMessageTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return "", fmt.Errorf("%s requires operator approval", t.Name())
}

// Deliver is the confirmation executor for this tool.
func (t *guardianMessageTool) Deliver(logger *slog.Logger) gate.ExecFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		decoded, err := decodeGuardianArgs(args)
		if err != nil {
			return "", err
		}
		logger.Info("guardian message delivered",
			"student_id", decoded.StudentID,
			"length", len(decoded.Message),
		)
		return fmt.Sprintf("Message to guardians of student %s sent.", strings.TrimSpace(decoded.StudentID)), nil
	}
}

func decodeGuardianArgs(args json.RawMessage) (guardianMessageArgs, error) {
	var decoded guardianMessageArgs
	err := tools.DecodeArgs(args, &decoded)
	return decoded, err
}
