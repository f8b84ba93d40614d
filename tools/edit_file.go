package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path within the workspace."`
	OldStr string `json:"old_str,omitempty" jsonschema_description:"Exact text to replace; required when editing an existing file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or to replace old_str with."`
}

var EditFileDefinition = ToolDefinition{
	Name: "edit_file",
	Description: `Create or modify a text file addressed by a relative path within the workspace.

When old_str is empty and the file does not exist, a new file is created with new_str as its content.

When editing an existing file, all occurrences of old_str are replaced with new_str; old_str and new_str must differ.
`,
	InputSchema: EditFileInputSchema,
	Function:    EditFile,
}

var EditFileInputSchema = GenerateSchema[EditFileInput]()

// EditFile creates or rewrites a sandboxed file. Parent directories are
// created as needed; the same path policy as the read tools applies.
func EditFile(input json.RawMessage) (string, error) {
	var in EditFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}

	if in.Path == "" || in.OldStr == in.NewStr {
		return "", fmt.Errorf("invalid edit parameters")
	}

	abs, err := resolvePath(in.Path)
	if err != nil {
		return "", err
	}

	b, readErr := os.ReadFile(abs)
	if readErr != nil {
		if in.OldStr == "" && errors.Is(readErr, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(abs, []byte(in.NewStr), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("Successfully created file %s", in.Path), nil
		}
		return "", readErr
	}

	if in.OldStr == "" {
		return "", fmt.Errorf("old_str must be provided when editing an existing file")
	}

	old := string(b)
	updated := strings.ReplaceAll(old, in.OldStr, in.NewStr)
	if updated == old {
		return "", fmt.Errorf("old_str not found in file")
	}
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return "", err
	}
	return "OK", nil
}
