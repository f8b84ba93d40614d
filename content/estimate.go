package content

import "unicode/utf8"

// Size estimation is a cheap pre-call heuristic used only for window
// trimming decisions. The authoritative token counts come from the server's
// reported usage after each call; never use these estimates as a stopping
// condition.

// runesPerToken approximates how many characters map to one token.
const runesPerToken = 4

// blockOverhead is a fixed per-block cost covering role/type framing.
// Changing it requires updating the deterministic sizing tests.
const blockOverhead = 4

// EstimateSize returns the estimated token cost of a single block.
func EstimateSize(b Block) int {
	switch v := b.(type) {
	case TextBlock:
		return utf8.RuneCountInString(v.Text)/runesPerToken + blockOverhead
	case ToolUseBlock:
		return (utf8.RuneCountInString(v.Name)+utf8.RuneCountInString(string(v.Input)))/runesPerToken + blockOverhead
	case ToolResultBlock:
		return utf8.RuneCountInString(v.Content)/runesPerToken + blockOverhead
	default:
		return blockOverhead
	}
}

// EstimateMessage sums EstimateSize over all blocks of m.
func EstimateMessage(m Message) int {
	total := 0
	for _, b := range m.Blocks {
		total += EstimateSize(b)
	}
	return total
}

// EstimateHistory sums EstimateMessage over all messages.
func EstimateHistory(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}
