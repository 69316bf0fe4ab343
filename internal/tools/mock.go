package tools

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// MockTool is a helper for testing that implements the Tool interface.
// It is exported so other packages (like gate tests) can use it.
type MockTool struct {
	NameVal      string
	DescVal      string
	SchemaVal    string
	Confirm      bool
	ValidateFunc func(args json.RawMessage) error
	ExecFunc     func(ctx context.Context, args json.RawMessage) (string, error)

	executions atomic.Int64
}

func (m *MockTool) Name() string {
	if m.NameVal == "" {
		return "mock_tool"
	}
	return m.NameVal
}

func (m *MockTool) Description() string {
	return m.DescVal
}

func (m *MockTool) ParametersSchema() string {
	if m.SchemaVal == "" {
		return "{}"
	}
	return m.SchemaVal
}

func (m *MockTool) RequiresConfirmation() bool {
	return m.Confirm
}

func (m *MockTool) ValidateArgs(args json.RawMessage) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(args)
	}
	return nil
}

func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	m.executions.Add(1)
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, args)
	}
	return "mock result", nil
}

// Executions reports how many times Execute ran; tests use it to prove that
// validation failures never reach an executor.
func (m *MockTool) Executions() int {
	return int(m.executions.Load())
}
