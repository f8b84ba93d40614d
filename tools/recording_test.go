package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/agentloop-dev/agentloop/tools"
)

func scriptedExecutor() *tools.LocalExecutor {
	return tools.NewLocalExecutor(
		tools.ToolDefinition{
			Name: "echo",
			Function: func(in json.RawMessage) (string, error) {
				return string(in), nil
			},
		},
		tools.ToolDefinition{
			Name: "fail",
			Function: func(json.RawMessage) (string, error) {
				return "", errors.New("nope")
			},
		},
	)
}

func TestRecordingExecutor_RecordsInOrder(t *testing.T) {
	rec := tools.NewRecordingExecutor(scriptedExecutor())
	ctx := context.Background()

	if _, err := rec.CallTool(ctx, "echo", json.RawMessage(`{"n":1}`)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := rec.CallTool(ctx, "fail", nil); err == nil {
		t.Fatal("expected error to pass through")
	}

	steps := rec.Steps()
	if len(steps) != 2 {
		t.Fatalf("got %d steps", len(steps))
	}
	if steps[0].Tool != "echo" || steps[0].IsError || steps[0].Result != `{"n":1}` {
		t.Fatalf("unexpected first step: %+v", steps[0])
	}
	if steps[1].Tool != "fail" || !steps[1].IsError {
		t.Fatalf("unexpected second step: %+v", steps[1])
	}
	if steps[0].ID == "" || steps[0].ID == steps[1].ID {
		t.Fatalf("step ids must be unique: %q %q", steps[0].ID, steps[1].ID)
	}
}

func TestRecordingExecutor_ForwardsListTools(t *testing.T) {
	rec := tools.NewRecordingExecutor(tools.NewLocalExecutor())
	descs, err := rec.ListTools(context.Background())
	if err != nil || len(descs) == 0 {
		t.Fatalf("unexpected: %v %v", descs, err)
	}
}

func TestWorkflow_SaveLoadRoundTrip(t *testing.T) {
	rec := tools.NewRecordingExecutor(scriptedExecutor())
	if _, err := rec.CallTool(context.Background(), "echo", json.RawMessage(`"x"`)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	path := filepath.Join(sharedDir, "wf.json")
	if err := tools.SaveWorkflow(path, rec.Workflow("demo")); err != nil {
		t.Fatalf("save: %v", err)
	}
	wf, err := tools.LoadWorkflow(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if wf.Name != "demo" || len(wf.Steps) != 1 || wf.Steps[0].Tool != "echo" {
		t.Fatalf("unexpected workflow: %+v", wf)
	}
}

func TestLoadWorkflow_MissingFile(t *testing.T) {
	wf, err := tools.LoadWorkflow(filepath.Join(sharedDir, "absent.json"))
	if err != nil || wf.Steps != nil {
		t.Fatalf("missing file should be empty workflow: %+v %v", wf, err)
	}
}
