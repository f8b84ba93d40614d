package tools

import (
	"context"
	"encoding/json"
)

// Registry returns the built-in tool definitions wired for the local executor.
func Registry() []ToolDefinition {
	return []ToolDefinition{ReadFileDefinition, ListFilesDefinition, EditFileDefinition}
}

// LocalExecutor serves tool calls from in-process ToolDefinitions. It is the
// reference Executor implementation; remote backends satisfy the same
// interface.
type LocalExecutor struct {
	defs []ToolDefinition
}

// NewLocalExecutor wraps the given definitions. With none given it uses the
// built-in registry.
func NewLocalExecutor(defs ...ToolDefinition) *LocalExecutor {
	if len(defs) == 0 {
		defs = Registry()
	}
	return &LocalExecutor{defs: defs}
}

// ListTools implements Executor.
func (e *LocalExecutor) ListTools(_ context.Context) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d.Descriptor())
	}
	return out, nil
}

// CallTool implements Executor. Unknown tools and handler failures are
// reported as *ExecutionError.
func (e *LocalExecutor) CallTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, d := range e.defs {
		if d.Name != name {
			continue
		}
		out, err := d.Function(args)
		if err != nil {
			return nil, &ExecutionError{Tool: name, Message: err.Error()}
		}
		return out, nil
	}
	return nil, &ExecutionError{Tool: name, Message: "tool not found"}
}
