package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// PolicyError is a machine-readable error body surfaced back to the model as
// JSON inside the tool result.
type PolicyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool_result
// payloads small.
func (e PolicyError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// workspaceRoot resolves the sandbox root for the built-in file tools:
// LOOP_WORKSPACE_ROOT when set, the working directory otherwise.
func workspaceRoot() (string, error) {
	root := os.Getenv("LOOP_WORKSPACE_ROOT")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = cwd
	}
	return filepath.Abs(root)
}

// resolvePath validates a model-supplied relative path and resolves it under
// the sandbox root. Absolute paths, parent traversal, symlink escapes and the
// telemetry directory are rejected.
func resolvePath(rel string) (string, error) {
	if rel == "" {
		return "", PolicyError{Code: "ERR_EMPTY_PATH", Message: "path is required"}
	}
	if filepath.IsAbs(rel) {
		return "", PolicyError{Code: "ERR_ABS_PATH", Message: "absolute paths are not allowed"}
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", PolicyError{Code: "ERR_ESCAPES_ROOT", Message: "path escapes the workspace"}
	}
	if clean == telemetryDir || strings.HasPrefix(clean, telemetryDir+string(filepath.Separator)) {
		return "", PolicyError{Code: "ERR_DENIED_READ", Message: "agent state directory is off limits"}
	}
	root, err := workspaceRoot()
	if err != nil {
		return "", err
	}
	// Resolve symlinks in the root so the boundary check below compares
	// canonical paths.
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	candidate := filepath.Join(root, clean)

	// Best-effort symlink resolution of the candidate. When the leaf does
	// not exist yet, resolve the parent and rejoin the final segment; this
	// still reveals escapes through a symlinked directory component.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		parent := filepath.Dir(candidate)
		if resolvedParent, err2 := filepath.EvalSymlinks(parent); err2 == nil {
			candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
		}
	}

	relResolved, err := filepath.Rel(root, candidate)
	if err != nil || relResolved == ".." || strings.HasPrefix(relResolved, ".."+string(filepath.Separator)) || filepath.IsAbs(relResolved) {
		return "", PolicyError{Code: "ERR_ESCAPES_ROOT", Message: "path resolves outside the workspace"}
	}
	return candidate, nil
}

// telemetryDir mirrors the directory the telemetry package writes to.
const telemetryDir = ".agentloop"
