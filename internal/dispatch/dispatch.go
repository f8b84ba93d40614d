// Package dispatch routes model-issued tool calls to an Executor and folds
// every outcome, including failures, into tool_result content. The model sees
// errors as data; only the surrounding loop decides what to do about them.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/telemetry"
	"github.com/agentloop-dev/agentloop/tools"
)

const defaultMaxParallel = 4

// resultEnvelope is the JSON shape of every tool_result content string.
type resultEnvelope struct {
	Result   string         `json:"result"`
	Metadata resultMetadata `json:"metadata"`
}

type resultMetadata struct {
	ToolName        string `json:"tool_name"`
	ToolArgs        any    `json:"tool_args"`
	IsError         bool   `json:"is_error"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// Options configure a Dispatcher.
type Options struct {
	// MaxParallel caps concurrent tool executions in ExecuteAll.
	MaxParallel int
}

// Dispatcher validates tool call arguments against the executor's declared
// schemas and runs the calls. Descriptors and validators are fixed at
// construction; the tool surface does not change mid-conversation.
type Dispatcher struct {
	exec        tools.Executor
	descriptors []tools.Descriptor
	validators  map[string]*jsonschema.Schema
	maxParallel int
}

// New lists the executor's tools and compiles a validator per input schema.
func New(ctx context.Context, exec tools.Executor, opts Options) (*Dispatcher, error) {
	descs, err := exec.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	validators := make(map[string]*jsonschema.Schema, len(descs))
	for _, d := range descs {
		schema, err := compileSchema(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
		}
		validators[d.Name] = schema
	}

	maxPar := opts.MaxParallel
	if maxPar < 1 {
		maxPar = defaultMaxParallel
	}
	return &Dispatcher{
		exec:        exec,
		descriptors: descs,
		validators:  validators,
		maxParallel: maxPar,
	}, nil
}

// Descriptors returns the tool surface advertised to the model.
func (d *Dispatcher) Descriptors() []tools.Descriptor {
	out := make([]tools.Descriptor, len(d.descriptors))
	copy(out, d.descriptors)
	return out
}

// Execute runs one tool call and always returns a well-formed tool_result
// block carrying the call's ID. Unknown tools, malformed arguments, and
// executor failures all become is_error results rather than Go errors.
func (d *Dispatcher) Execute(ctx context.Context, call content.ToolUseBlock) content.ToolResultBlock {
	start := time.Now()

	args, result, isErr := d.run(ctx, call)
	elapsed := time.Since(start).Milliseconds()

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	telemetry.Emit("tool_exec", map[string]any{
		"turn_id":     turnID,
		"tool":        call.Name,
		"tool_use_id": call.ID,
		"is_error":    isErr,
		"duration_ms": elapsed,
	})

	env := resultEnvelope{
		Result: result,
		Metadata: resultMetadata{
			ToolName:        call.Name,
			ToolArgs:        args,
			IsError:         isErr,
			ExecutionTimeMS: elapsed,
		},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		// Tool output resisted JSON encoding; fall back to a minimal envelope.
		payload = []byte(fmt.Sprintf(
			`{"result":%q,"metadata":{"tool_name":%q,"tool_args":null,"is_error":true,"execution_time_ms":%d}}`,
			"tool result could not be encoded: "+err.Error(), call.Name, elapsed))
		isErr = true
	}

	return content.ToolResultBlock{
		ToolUseID: call.ID,
		Content:   string(payload),
		IsError:   isErr,
	}
}

// run decodes and validates arguments, then calls the executor. It returns
// the decoded args (for the result metadata), the result text, and whether
// the outcome is an error.
func (d *Dispatcher) run(ctx context.Context, call content.ToolUseBlock) (any, string, bool) {
	raw := call.Input
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var args any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Sprintf("invalid tool arguments: %v", err), true
	}

	validator, ok := d.validators[call.Name]
	if !ok {
		return args, fmt.Sprintf("unknown tool: %s", call.Name), true
	}
	if err := validator.Validate(args); err != nil {
		return args, fmt.Sprintf("tool arguments failed schema validation: %v", err), true
	}

	out, err := d.exec.CallTool(ctx, call.Name, raw)
	if err != nil {
		return args, err.Error(), true
	}
	return args, stringifyResult(out), false
}

// ExecuteAll runs a batch of tool calls with bounded parallelism and returns
// results in the order the calls were issued, one per call.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []content.ToolUseBlock) []content.ToolResultBlock {
	n := len(calls)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []content.ToolResultBlock{d.Execute(ctx, calls[0])}
	}

	maxPar := d.maxParallel
	if maxPar > n {
		maxPar = n
	}

	results := make([]content.ToolResultBlock, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call content.ToolUseBlock) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = d.Execute(ctx, call)
		}(i, calls[i])
	}
	wg.Wait()

	return results
}

func compileSchema(raw map[string]any) (*jsonschema.Schema, error) {
	if raw == nil {
		raw = map[string]any{"type": "object"}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	data, err := jsonschema.UnmarshalJSON(strings.NewReader(string(encoded)))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", data); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

func stringifyResult(v any) string {
	switch out := v.(type) {
	case string:
		return out
	case nil:
		return ""
	default:
		b, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprint(out)
		}
		return string(b)
	}
}
