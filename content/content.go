package content

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is a single unit of message content. Exactly three kinds exist:
// TextBlock, ToolUseBlock and ToolResultBlock. Consumers switch on the
// concrete type; the unexported method keeps the set closed.
type Block interface {
	blockKind() string
}

// TextBlock carries plain model or user text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is a model-issued request to invoke a named tool.
// Input holds the raw JSON arguments exactly as the model produced them.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock carries the outcome of executing a tool call, paired back
// to its request via ToolUseID.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextBlock) blockKind() string       { return "text" }
func (ToolUseBlock) blockKind() string    { return "tool_use" }
func (ToolResultBlock) blockKind() string { return "tool_result" }

// Message is one conversation turn: a role plus ordered content blocks.
// Messages are treated as immutable once appended to a history, with one
// exception: compaction rewrites historical ToolResultBlock content in place
// (ToolUseID is always preserved).
type Message struct {
	Role   Role
	Blocks []Block
}

// NewUserMessage builds a user-role message from blocks.
func NewUserMessage(blocks ...Block) Message {
	return Message{Role: RoleUser, Blocks: blocks}
}

// NewAssistantMessage builds an assistant-role message from blocks.
func NewAssistantMessage(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Blocks: blocks}
}

// ToolUseIDs returns the ids of all tool_use blocks in m, in block order.
func ToolUseIDs(m Message) []string {
	var ids []string
	for _, b := range m.Blocks {
		if tu, ok := b.(ToolUseBlock); ok {
			ids = append(ids, tu.ID)
		}
	}
	return ids
}

// ToolResultIDs returns the ids referenced by all tool_result blocks in m,
// in block order.
func ToolResultIDs(m Message) []string {
	var ids []string
	for _, b := range m.Blocks {
		if tr, ok := b.(ToolResultBlock); ok {
			ids = append(ids, tr.ToolUseID)
		}
	}
	return ids
}
