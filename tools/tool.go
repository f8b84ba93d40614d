package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Descriptor declaratively exposes a callable tool to the model.
// InputSchema is a JSON Schema object (properties/required subset expected).
// Descriptors are supplied by the executor and read-only for the loop.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Executor is the external tool-execution contract. Implementations perform
// the side-effecting work; the loop only sees descriptors and results.
type Executor interface {
	// ListTools returns the descriptors of every callable tool.
	ListTools(ctx context.Context) ([]Descriptor, error)

	// CallTool invokes a named tool with raw JSON arguments and returns its
	// raw result value. Failures are reported as *ExecutionError.
	CallTool(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// ExecutionError reports a tool invocation failure. The dispatcher converts
// it into an is_error tool result; it never aborts a run.
type ExecutionError struct {
	Tool    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

// ToolDefinition binds a descriptor to a local Go implementation.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Function    func(input json.RawMessage) (string, error)
}

// Descriptor returns the external view of the definition.
func (d ToolDefinition) Descriptor() Descriptor {
	return Descriptor{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
}

// GenerateSchema derives a JSON Schema object from a Go struct type using
// jsonschema_description tags. Meant for package-level init of tool
// definitions; panics on the (programming) error of an unmarshalable type.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := reflector.Reflect(v)
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(fmt.Sprintf("tools: decode schema: %v", err))
	}
	return m
}
