// Package memory persists conversations across process restarts. Every block
// kind survives the round trip, so a resumed conversation keeps its tool_use
// and tool_result pairing intact.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/agentloop-dev/agentloop/content"
)

// blockRecord is the tagged wire form of a content block.
type blockRecord struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type messageRecord struct {
	Role   string        `json:"role"`
	Blocks []blockRecord `json:"blocks"`
}

func encodeMessage(m content.Message) messageRecord {
	rec := messageRecord{Role: string(m.Role), Blocks: make([]blockRecord, 0, len(m.Blocks))}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case content.TextBlock:
			rec.Blocks = append(rec.Blocks, blockRecord{Type: "text", Text: v.Text})
		case content.ToolUseBlock:
			rec.Blocks = append(rec.Blocks, blockRecord{Type: "tool_use", ID: v.ID, Name: v.Name, Input: v.Input})
		case content.ToolResultBlock:
			rec.Blocks = append(rec.Blocks, blockRecord{Type: "tool_result", ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError})
		}
	}
	return rec
}

func decodeMessage(rec messageRecord) (content.Message, error) {
	msg := content.Message{Role: content.Role(rec.Role), Blocks: make([]content.Block, 0, len(rec.Blocks))}
	for _, b := range rec.Blocks {
		switch b.Type {
		case "text":
			msg.Blocks = append(msg.Blocks, content.TextBlock{Text: b.Text})
		case "tool_use":
			msg.Blocks = append(msg.Blocks, content.ToolUseBlock{ID: b.ID, Name: b.Name, Input: b.Input})
		case "tool_result":
			msg.Blocks = append(msg.Blocks, content.ToolResultBlock{ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError})
		default:
			return content.Message{}, fmt.Errorf("unknown block type %q in stored conversation", b.Type)
		}
	}
	return msg, nil
}

// LoadConversation reads a conversation from path. A missing file is an empty
// conversation, not an error.
func LoadConversation(path string) ([]content.Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var recs []messageRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	msgs := make([]content.Message, 0, len(recs))
	for _, rec := range recs {
		msg, err := decodeMessage(rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SaveConversation writes the conversation to path as indented JSON.
func SaveConversation(path string, msgs []content.Message) error {
	recs := make([]messageRecord, 0, len(msgs))
	for _, m := range msgs {
		recs = append(recs, encodeMessage(m))
	}
	b, err := json.MarshalIndent(recs, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
