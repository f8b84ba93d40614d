package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/telemetry"
	"github.com/agentloop-dev/agentloop/tools"
)

// DefaultOpenAIModel is used when LOOP_MODEL is unset.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIModel adapts the Chat Completions API to the Model interface. Tool
// results map to role "tool" messages and tool-use blocks to assistant tool
// calls; the loop itself only ever sees the normalized content types.
type OpenAIModel struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIModel builds a client from the environment (OPENAI_API_KEY).
func NewOpenAIModel(model openai.ChatModel, reqOpts ...oaioption.RequestOption) *OpenAIModel {
	opts := append([]oaioption.RequestOption{oaioption.WithMaxRetries(0)}, reqOpts...)
	return &OpenAIModel{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (m *OpenAIModel) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:               m.model,
		Messages:            toOpenAIMessages(req.Messages),
		MaxCompletionTokens: openai.Int(req.MaxOutputTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response contained no choices")
	}

	out := &Response{
		Content: fromOpenAIMessage(resp.Choices[0].Message),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		StopReason: string(resp.Choices[0].FinishReason),
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	telemetry.Emit("model_call", map[string]any{
		"turn_id":       turnID,
		"provider":      "openai",
		"model":         string(m.model),
		"input_tokens":  out.Usage.InputTokens,
		"output_tokens": out.Usage.OutputTokens,
		"stop_reason":   out.StopReason,
	})
	return out, nil
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
		return &TransientError{Err: err}
	}
	return err
}

func toOpenAIMessages(msgs []content.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case content.RoleAssistant:
			out = append(out, toOpenAIAssistant(msg))
		default:
			out = append(out, toOpenAIUser(msg)...)
		}
	}
	return out
}

// toOpenAIUser expands one user message into Chat Completions form: each tool
// result becomes its own role-"tool" message, remaining text becomes a single
// user message.
func toOpenAIUser(msg content.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	var texts []string
	for _, b := range msg.Blocks {
		switch v := b.(type) {
		case content.TextBlock:
			texts = append(texts, v.Text)
		case content.ToolResultBlock:
			out = append(out, openai.ToolMessage(v.Content, v.ToolUseID))
		}
	}
	if len(texts) > 0 {
		out = append(out, openai.UserMessage(strings.Join(texts, "\n")))
	}
	return out
}

func toOpenAIAssistant(msg content.Message) openai.ChatCompletionMessageParamUnion {
	var texts []string
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, b := range msg.Blocks {
		switch v := b.(type) {
		case content.TextBlock:
			texts = append(texts, v.Text)
		case content.ToolUseBlock:
			input := v.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID:   v.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      v.Name,
					Arguments: string(input),
				},
			})
		}
	}
	if len(calls) > 0 {
		assistant := &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: calls,
		}
		// Narration alongside tool calls must survive the round trip; the
		// model reads its own earlier text on later iterations.
		if text := strings.Join(texts, "\n"); text != "" {
			assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(text),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}
	}
	return openai.AssistantMessage(strings.Join(texts, "\n"))
}

func toOpenAITools(descs []tools.Descriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(descs))
	for _, d := range descs {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.InputSchema),
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) []content.Block {
	var out []content.Block
	if msg.Content != "" {
		out = append(out, content.TextBlock{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		out = append(out, content.ToolUseBlock{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return out
}
