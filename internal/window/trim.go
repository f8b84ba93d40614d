package window

import "github.com/agentloop-dev/agentloop/content"

// TrimNotice is the synthetic assistant message prepended after trimming.
const TrimNotice = "[earlier conversation trimmed to fit the context window]"

// Stats summarizes the result of a Trim call.
type Stats struct {
	Total           int // estimated tokens of the returned history
	Budget          int
	RemovedMessages int
	RemovedGroups   int
}

// Trim drops the oldest messages until the estimated history size fits
// budget, then prepends a synthetic assistant notice. Rules:
//   - If the estimate already fits, the input slice is returned untouched.
//   - Removal proceeds oldest-first over whole pair-safe groups, so a
//     tool_use and its tool_result are always dropped together.
//   - The two most recent messages are never removed, even when the history
//     still exceeds budget after trimming everything older.
func Trim(msgs []content.Message, budget int) ([]content.Message, Stats) {
	total := content.EstimateHistory(msgs)
	if total <= budget {
		return msgs, Stats{Total: total, Budget: budget}
	}

	groups := GroupMessages(msgs)
	keepFrom := len(msgs) - 2 // newest two messages are untouchable
	if keepFrom < 0 {
		keepFrom = 0
	}

	cut := 0
	removedGroups := 0
	for _, g := range groups {
		if total <= budget || g.End > keepFrom {
			break
		}
		total -= groupCost(g, msgs)
		cut = g.End
		removedGroups++
	}
	if cut == 0 {
		return msgs, Stats{Total: total, Budget: budget}
	}

	notice := content.NewAssistantMessage(content.TextBlock{Text: TrimNotice})
	out := make([]content.Message, 0, 1+len(msgs)-cut)
	out = append(out, notice)
	out = append(out, msgs[cut:]...)

	vlogf("trimmed: budget=%d est_total=%d removed_msgs=%d removed_groups=%d", budget, total, cut, removedGroups)
	return out, Stats{
		Total:           total + content.EstimateMessage(notice),
		Budget:          budget,
		RemovedMessages: cut,
		RemovedGroups:   removedGroups,
	}
}
