package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/telemetry"
	"github.com/agentloop-dev/agentloop/tools"
)

// DefaultAnthropicModel is used when LOOP_MODEL is unset.
const DefaultAnthropicModel = anthropic.ModelClaude3_7SonnetLatest

// AnthropicModel adapts the Anthropic Messages API to the Model interface.
// The SDK's own retry layer is disabled; backoff belongs to WithRetry so the
// attempt count and delays are under one roof.
type AnthropicModel struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicModel builds a client from the environment (ANTHROPIC_API_KEY).
func NewAnthropicModel(model anthropic.Model, reqOpts ...option.RequestOption) *AnthropicModel {
	opts := append([]option.RequestOption{option.WithMaxRetries(0)}, reqOpts...)
	return &AnthropicModel{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (m *AnthropicModel) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: req.MaxOutputTokens,
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(req.Tools),
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicErr(err)
	}

	blocks, err := fromAnthropicContent(resp.Content)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Content: blocks,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		StopReason: string(resp.StopReason),
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	telemetry.Emit("model_call", map[string]any{
		"turn_id":       turnID,
		"provider":      "anthropic",
		"model":         string(m.model),
		"input_tokens":  out.Usage.InputTokens,
		"output_tokens": out.Usage.OutputTokens,
		"stop_reason":   out.StopReason,
	})
	return out, nil
}

func classifyAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
		return &TransientError{Err: err}
	}
	return err
}

func toAnthropicMessages(msgs []content.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			switch v := b.(type) {
			case content.TextBlock:
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			case content.ToolUseBlock:
				input := v.Input
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(v.ID, input, v.Name))
			case content.ToolResultBlock:
				blocks = append(blocks, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
			}
		}
		switch msg.Role {
		case content.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toAnthropicTools(descs []tools.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		props := d.InputSchema["properties"]
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   stringSlice(d.InputSchema["required"]),
				},
			},
		})
	}
	return out
}

func fromAnthropicContent(blocks []anthropic.ContentBlockUnion) ([]content.Block, error) {
	out := make([]content.Block, 0, len(blocks))
	for _, block := range blocks {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out = append(out, content.TextBlock{Text: v.Text})
		case anthropic.ToolUseBlock:
			out = append(out, content.ToolUseBlock{
				ID:    v.ID,
				Name:  v.Name,
				Input: json.RawMessage(v.JSON.Input.Raw()),
			})
		default:
			return nil, fmt.Errorf("unsupported content block type %T in model response", v)
		}
	}
	return out, nil
}
