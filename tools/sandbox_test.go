package tools_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/agentloop-dev/agentloop/tools"
)

// mustSymlink skips the test when the platform or filesystem does not
// support symlinks.
func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink not allowed on this FS: %v", err)
	}
}

func TestReadFile_SymlinkEscapeDenied(t *testing.T) {
	dir := filepath.Join(sharedDir, rel(t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("top secret"), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	mustSymlink(t, outside, filepath.Join(dir, "out"))

	in := tools.ReadFileInput{Path: rel(t, "out", "secret.txt")}
	b, _ := json.Marshal(in)
	_, err := tools.ReadFileDefinition.Function(b)
	if err == nil {
		t.Fatal("expected deny for symlink escape")
	}
	if !strings.Contains(err.Error(), "ERR_ESCAPES_ROOT") {
		t.Fatalf("expected ERR_ESCAPES_ROOT, got: %v", err)
	}
}

func TestListFiles_SymlinkedDirEscapeDenied(t *testing.T) {
	dir := filepath.Join(sharedDir, rel(t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	mustSymlink(t, t.TempDir(), filepath.Join(dir, "outdir"))

	in := tools.ListFilesInput{Path: rel(t, "outdir")}
	b, _ := json.Marshal(in)
	if _, err := tools.ListFilesDefinition.Function(b); err == nil {
		t.Fatal("expected deny for symlinked directory escape")
	}
}

func TestEditFile_SymlinkedParentEscapeDenied(t *testing.T) {
	// The leaf does not exist yet; the escape goes through a symlinked
	// parent directory component.
	dir := filepath.Join(sharedDir, rel(t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	mustSymlink(t, t.TempDir(), filepath.Join(dir, "out"))

	in := tools.EditFileInput{Path: rel(t, "out", "new.txt"), NewStr: "pwned"}
	b, _ := json.Marshal(in)
	_, err := tools.EditFileDefinition.Function(b)
	if err == nil {
		t.Fatal("expected deny for symlinked parent escape")
	}
	if !strings.Contains(err.Error(), "ERR_ESCAPES_ROOT") {
		t.Fatalf("expected ERR_ESCAPES_ROOT, got: %v", err)
	}
}

func TestResolvePath_SymlinkInsideWorkspaceAllowed(t *testing.T) {
	dir := filepath.Join(sharedDir, rel(t))
	if err := os.MkdirAll(filepath.Join(dir, "real"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real", "a.txt"), []byte("ok"), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	mustSymlink(t, filepath.Join(dir, "real"), filepath.Join(dir, "alias"))

	in := tools.ReadFileInput{Path: rel(t, "alias", "a.txt")}
	b, _ := json.Marshal(in)
	out, err := tools.ReadFileDefinition.Function(b)
	if err != nil {
		t.Fatalf("in-workspace symlink should be allowed: %v", err)
	}
	if out != "ok" {
		t.Fatalf("got %q", out)
	}
}
