package window

import "github.com/agentloop-dev/agentloop/content"

// ResultPlaceholder replaces stale tool_result payloads during compaction.
const ResultPlaceholder = "[previous tool result removed]"

// Compact replaces the content of every tool_result block with
// ResultPlaceholder, except those in the most recent user message, which the
// model still needs verbatim. ToolUseID is always preserved so request/result
// pairing stays intact. Compaction runs every iteration regardless of size:
// it bounds the accumulation of large tool outputs independently of the
// token budget.
//
// The rewrite happens in place; the returned slice is the input slice.
func Compact(msgs []content.Message) []content.Message {
	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == content.RoleUser {
			lastUser = i
			break
		}
	}

	replaced := 0
	for i := range msgs {
		if i == lastUser {
			continue
		}
		for j, b := range msgs[i].Blocks {
			tr, ok := b.(content.ToolResultBlock)
			if !ok || tr.Content == ResultPlaceholder {
				continue
			}
			tr.Content = ResultPlaceholder
			msgs[i].Blocks[j] = tr
			replaced++
		}
	}
	if replaced > 0 {
		vlogf("compacted: replaced=%d", replaced)
	}
	return msgs
}
