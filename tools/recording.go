package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordedStep is one observed tool invocation. Result holds the serialized
// return value, or the error message when IsError is set.
type RecordedStep struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     string          `json:"result"`
	IsError    bool            `json:"is_error"`
	DurationMS int64           `json:"duration_ms"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Workflow is an ordered sequence of recorded steps with metadata. Its JSON
// form is the on-disk format; consumers treat it as opaque.
type Workflow struct {
	Name       string         `json:"name"`
	RecordedAt time.Time      `json:"recorded_at"`
	Steps      []RecordedStep `json:"steps"`
}

// RecordingExecutor wraps any Executor and logs every CallTool invocation.
// Composition happens at construction time; the wrapped executor is never
// modified. Safe for concurrent use.
type RecordingExecutor struct {
	next Executor

	mu    sync.Mutex
	steps []RecordedStep
}

// NewRecordingExecutor decorates next with step recording.
func NewRecordingExecutor(next Executor) *RecordingExecutor {
	return &RecordingExecutor{next: next}
}

// ListTools forwards to the wrapped executor.
func (r *RecordingExecutor) ListTools(ctx context.Context) ([]Descriptor, error) {
	return r.next.ListTools(ctx)
}

// CallTool forwards to the wrapped executor and appends one step per call,
// success or failure. The underlying result and error pass through unchanged.
func (r *RecordingExecutor) CallTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	start := time.Now()
	out, err := r.next.CallTool(ctx, name, args)

	step := RecordedStep{
		ID:         uuid.NewString(),
		Tool:       name,
		Args:       append(json.RawMessage(nil), args...),
		DurationMS: time.Since(start).Milliseconds(),
		RecordedAt: start.UTC(),
	}
	if err != nil {
		step.IsError = true
		step.Result = err.Error()
	} else {
		step.Result = fmt.Sprintf("%v", out)
	}

	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()

	return out, err
}

// Steps returns a copy of the recorded steps in invocation order.
func (r *RecordingExecutor) Steps() []RecordedStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Workflow snapshots the recording under the given name.
func (r *RecordingExecutor) Workflow(name string) Workflow {
	return Workflow{Name: name, RecordedAt: time.Now().UTC(), Steps: r.Steps()}
}

// SaveWorkflow writes a workflow to path as indented JSON.
func SaveWorkflow(path string, wf Workflow) error {
	b, err := json.MarshalIndent(wf, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadWorkflow reads a workflow from path. A missing file yields an empty
// workflow, matching conversation persistence behaviour.
func LoadWorkflow(path string) (Workflow, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Workflow{}, nil
		}
		return Workflow{}, err
	}
	var wf Workflow
	if err := json.Unmarshal(b, &wf); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}
