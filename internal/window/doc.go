// Package window bounds conversation history before each model call.
//
// Two independent mechanisms:
//   - Trim: drops the oldest pair-safe message groups until the estimated
//     size fits the token budget, then prepends a synthetic notice.
//   - Compact: rewrites stale tool_result payloads to a fixed placeholder,
//     keeping only the most recent user message's results verbatim.
//
// Sizing uses the heuristic estimates from the content package; the
// authoritative stopping condition lives in the agent loop and uses
// server-reported usage.
package window
