package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/classpilot/tool-runtime/internal/toolerr"
)

// Tool represents an executable capability the model may invoke.
type Tool interface {
	// Name returns the unique identifier for the tool (e.g., "fetch_students").
	Name() string

	// Description returns a human/LLM-readable explanation of what the tool does.
	Description() string

	// ParametersSchema returns a JSON schema or description of expected input.
	ParametersSchema() string

	// Execute runs the tool with the given input (usually JSON) and returns a result string.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ArgumentValidator is an optional interface for strict argument validation.
// If a tool implements this, the registry validates arguments before Execute.
type ArgumentValidator interface {
	ValidateArgs(input json.RawMessage) error
}

// ConfirmationGated marks a tool whose execution must be approved by a human
// before it runs. Tools that do not implement it auto-execute.
type ConfirmationGated interface {
	RequiresConfirmation() bool
}

// RequiresConfirmation reports the tool's execution class.
func RequiresConfirmation(t Tool) bool {
	gated, ok := t.(ConfirmationGated)
	return ok && gated.RequiresConfirmation()
}

// DecodeArgs unmarshals raw model-supplied arguments into target. Unknown
// extra fields are ignored so older tools keep working when the model sends
// newer argument shapes. Empty input decodes as an empty object.
func DecodeArgs(raw json.RawMessage, target any) error {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: %v", toolerr.ErrInvalidArgs, err)
	}
	return nil
}
