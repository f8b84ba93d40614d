package modelclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/modelclient"
	"github.com/agentloop-dev/agentloop/tools"
)

type capture struct {
	method string
	url    string
	body   []byte
}

type fakeTransport struct {
	respStatus int
	respBody   []byte
	captured   *capture
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var b []byte
	if req.Body != nil {
		b, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	if f.captured != nil {
		f.captured.method = req.Method
		f.captured.url = req.URL.String()
		f.captured.body = b
	}
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newAnthropicWithTransport(rt http.RoundTripper) *modelclient.AnthropicModel {
	return modelclient.NewAnthropicModel(
		modelclient.DefaultAnthropicModel,
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
	)
}

type wireContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireRequest struct {
	Messages []struct {
		Role    string            `json:"role"`
		Content []wireContentItem `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		} `json:"input_schema"`
	} `json:"tools"`
	MaxTokens int64 `json:"max_tokens"`
}

func TestAnthropicModel_ConvertsRequestAndResponse(t *testing.T) {
	capReq := &capture{}
	fake := &fakeTransport{
		respStatus: 200,
		respBody: []byte(`{
			"role": "assistant",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_1", "name": "read_file", "input": {"path": "main.go"}}
			],
			"usage": {"input_tokens": 120, "output_tokens": 34}
		}`),
		captured: capReq,
	}
	m := newAnthropicWithTransport(fake)

	req := modelclient.Request{
		Messages: []content.Message{
			content.NewUserMessage(content.TextBlock{Text: "what is in main.go?"}),
			{Role: content.RoleAssistant, Blocks: []content.Block{
				content.ToolUseBlock{ID: "tu_0", Name: "list_files", Input: json.RawMessage(`{"path":"."}`)},
			}},
			content.NewUserMessage(content.ToolResultBlock{ToolUseID: "tu_0", Content: `["main.go"]`}),
		},
		Tools: []tools.Descriptor{{
			Name:        "read_file",
			Description: "Read a file.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []any{"path"},
			},
		}},
		MaxOutputTokens: 1024,
	}

	resp, err := m.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var rb wireRequest
	if err := json.Unmarshal(capReq.body, &rb); err != nil {
		t.Fatalf("unmarshal body: %v\nbody=%s", err, string(capReq.body))
	}
	if rb.MaxTokens != 1024 {
		t.Fatalf("max_tokens=%d, want 1024", rb.MaxTokens)
	}
	if len(rb.Messages) != 3 {
		t.Fatalf("messages=%d, want 3", len(rb.Messages))
	}
	if rb.Messages[1].Role != "assistant" || rb.Messages[1].Content[0].Type != "tool_use" || rb.Messages[1].Content[0].ID != "tu_0" {
		t.Fatalf("unexpected assistant message: %+v", rb.Messages[1])
	}
	if rb.Messages[2].Content[0].Type != "tool_result" || rb.Messages[2].Content[0].ToolUseID != "tu_0" {
		t.Fatalf("unexpected tool_result message: %+v", rb.Messages[2])
	}
	if len(rb.Tools) != 1 || rb.Tools[0].Name != "read_file" {
		t.Fatalf("unexpected tools: %+v", rb.Tools)
	}
	if len(rb.Tools[0].InputSchema.Required) != 1 || rb.Tools[0].InputSchema.Required[0] != "path" {
		t.Fatalf("unexpected required list: %+v", rb.Tools[0].InputSchema.Required)
	}

	if resp.StopReason != "tool_use" {
		t.Fatalf("stop_reason=%q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 34 {
		t.Fatalf("usage=%+v", resp.Usage)
	}
	if len(resp.Content) != 2 {
		t.Fatalf("content blocks=%d, want 2", len(resp.Content))
	}
	if tb, ok := resp.Content[0].(content.TextBlock); !ok || tb.Text != "let me check" {
		t.Fatalf("unexpected first block: %#v", resp.Content[0])
	}
	tu, ok := resp.Content[1].(content.ToolUseBlock)
	if !ok || tu.ID != "tu_1" || tu.Name != "read_file" {
		t.Fatalf("unexpected second block: %#v", resp.Content[1])
	}
	var args map[string]string
	if err := json.Unmarshal(tu.Input, &args); err != nil || args["path"] != "main.go" {
		t.Fatalf("unexpected tool input: %s (%v)", tu.Input, err)
	}
}

func TestAnthropicModel_EmptyToolUseInputSentAsObject(t *testing.T) {
	capReq := &capture{}
	fake := &fakeTransport{
		respStatus: 200,
		respBody:   []byte(`{"role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":1}}`),
		captured:   capReq,
	}
	m := newAnthropicWithTransport(fake)

	req := modelclient.Request{
		Messages: []content.Message{
			{Role: content.RoleAssistant, Blocks: []content.Block{
				content.ToolUseBlock{ID: "tu_0", Name: "list_files"},
			}},
			content.NewUserMessage(content.ToolResultBlock{ToolUseID: "tu_0", Content: "[]"}),
		},
		MaxOutputTokens: 64,
	}
	if _, err := m.Complete(context.Background(), req); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var rb wireRequest
	if err := json.Unmarshal(capReq.body, &rb); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if string(rb.Messages[0].Content[0].Input) != "{}" {
		t.Fatalf("input=%s, want {}", rb.Messages[0].Content[0].Input)
	}
}

func TestAnthropicModel_OverloadedIsTransient(t *testing.T) {
	fake := &fakeTransport{
		respStatus: 529,
		respBody:   []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
	}
	m := newAnthropicWithTransport(fake)

	_, err := m.Complete(context.Background(), modelclient.Request{MaxOutputTokens: 64})
	if err == nil {
		t.Fatal("expected error")
	}
	if !modelclient.IsTransient(err) {
		t.Fatalf("529 should be transient, got %v", err)
	}
}

func TestAnthropicModel_RateLimitIsTransient(t *testing.T) {
	fake := &fakeTransport{
		respStatus: 429,
		respBody:   []byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`),
	}
	m := newAnthropicWithTransport(fake)

	_, err := m.Complete(context.Background(), modelclient.Request{MaxOutputTokens: 64})
	if !modelclient.IsTransient(err) {
		t.Fatalf("429 should be transient, got %v", err)
	}
}

func TestAnthropicModel_BadRequestIsFatal(t *testing.T) {
	fake := &fakeTransport{
		respStatus: 400,
		respBody:   []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`),
	}
	m := newAnthropicWithTransport(fake)

	_, err := m.Complete(context.Background(), modelclient.Request{MaxOutputTokens: 64})
	if err == nil {
		t.Fatal("expected error")
	}
	if modelclient.IsTransient(err) {
		t.Fatalf("400 must not be transient: %v", err)
	}
}
