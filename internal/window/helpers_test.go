package window_test

import (
	"encoding/json"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/window"
)

// Text block constructor
func T(text string) content.Block {
	return content.TextBlock{Text: text}
}

// Tool-use block constructor; fixed short name keeps sizes deterministic.
func TU(id string) content.Block {
	return content.ToolUseBlock{ID: id, Name: "t", Input: json.RawMessage(nil)}
}

// Tool-result block constructor
func TR(id, payload string) content.Block {
	return content.ToolResultBlock{ToolUseID: id, Content: payload}
}

// Tool-result with the error flag set - grouping must treat it like a success.
func TRErr(id, payload string) content.Block {
	return content.ToolResultBlock{ToolUseID: id, Content: payload, IsError: true}
}

// Assistant message constructor
func Asst(blocks ...content.Block) content.Message {
	return content.NewAssistantMessage(blocks...)
}

// User message constructor
func User(blocks ...content.Block) content.Message {
	return content.NewUserMessage(blocks...)
}

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []window.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}
