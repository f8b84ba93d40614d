// Package content defines the provider-agnostic conversation data model.
//
// Includes:
//   - Block: closed tagged union (TextBlock, ToolUseBlock, ToolResultBlock).
//   - Message: role + ordered blocks; histories are ordered []Message.
//   - EstimateSize/EstimateMessage/EstimateHistory: heuristic sizing for
//     pre-call trimming only.
//
// Invariant: every tool_use id emitted in an assistant message is answered by
// exactly one tool_result with the same id in the next user message.
package content
