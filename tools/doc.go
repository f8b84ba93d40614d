// Package tools defines the tool-execution contract and local implementations.
//
// Includes:
//   - Executor: the external contract (ListTools/CallTool) the loop depends on.
//   - Descriptor and ToolDefinition; GenerateSchema[T]() derives JSON Schema
//     from Go structs.
//   - LocalExecutor: in-process executor over the built-in file tools
//     (read_file, list_files, edit_file) with a sandboxed path policy.
//   - RecordingExecutor: decorator that logs calls into a replayable Workflow.
package tools
