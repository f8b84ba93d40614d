package tools

import (
	"encoding/json"
	"os"
	"sort"
)

type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Optional relative directory to list (defaults to the workspace root)."`
}

var ListFilesDefinition = ToolDefinition{
	Name:        "list_files",
	Description: "List names of files in a directory within the workspace (non-recursive).",
	InputSchema: ListFilesInputSchema,
	Function:    ListFiles,
}

var ListFilesInputSchema = GenerateSchema[ListFilesInput]()

// ListFiles returns a JSON-encoded sorted []string of directory entry names.
// Directories are suffixed with a slash. Sorting keeps output deterministic
// across filesystems.
func ListFiles(input json.RawMessage) (string, error) {
	var in ListFilesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	rel := in.Path
	if rel == "" {
		rel = "."
	}
	abs, err := resolvePath(rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == telemetryDir {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
