package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/classpilot/tool-runtime/internal/toolerr"
)

// Registry manages a collection of tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Tool names are unique; registering a
// name twice is a configuration defect and fails with ErrDuplicateTool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", toolerr.ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns a list of all registered tools, sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Validate coerces raw model-supplied arguments for the named tool. It runs
// before any executor: ErrUnknownTool when the name is absent, a
// *toolerr.ValidationError when a required field is missing or mis-shaped.
// The returned payload is what executors receive later.
func (r *Registry) Validate(name string, raw json.RawMessage) (json.RawMessage, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", toolerr.ErrUnknownTool, name)
	}
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: arguments are not valid JSON", toolerr.ErrInvalidArgs)
	}
	if validator, ok := tool.(ArgumentValidator); ok {
		if err := validator.ValidateArgs(payload); err != nil {
			return nil, fmt.Errorf("invalid args for %s: %w", name, err)
		}
	}
	return payload, nil
}

// DescribeAll returns a formatted string describing all available tools for
// the LLM system prompt.
func (r *Registry) DescribeAll() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Sort for deterministic output
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var output string
	for _, name := range names {
		tool := r.tools[name]
		output += fmt.Sprintf("- %s: %s\n  Schema: %s\n", tool.Name(), tool.Description(), tool.ParametersSchema())
	}
	return output
}
