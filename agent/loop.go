// Package agent drives the conversation loop: send history to the model,
// execute any tool calls it issues, feed the results back, and repeat until
// the model answers in plain text or a safety limit fires.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/internal/dispatch"
	"github.com/agentloop-dev/agentloop/internal/modelclient"
	"github.com/agentloop-dev/agentloop/internal/telemetry"
	"github.com/agentloop-dev/agentloop/internal/window"
)

// TerminationReason explains why a run ended.
type TerminationReason string

const (
	// ReasonCompleted means the model produced a final text answer with no
	// tool calls outstanding.
	ReasonCompleted TerminationReason = "completed"
	// ReasonMaxIterations means the iteration cap fired first.
	ReasonMaxIterations TerminationReason = "max_iterations"
	// ReasonMaxTokens means the cumulative token budget was exhausted.
	ReasonMaxTokens TerminationReason = "max_tokens"
)

const (
	maxIterationsMarker = "\n[stopped: maximum iterations reached]"
	maxTokensMarker     = "\n[stopped: token budget exhausted]"
)

// Options bound a run. Zero values fall back to environment overrides
// (LOOP_TRIM_BUDGET, LOOP_MAX_TOKENS, LOOP_MAX_ITERATIONS,
// LOOP_MAX_OUTPUT_TOKENS) and then to the package defaults.
type Options struct {
	// TrimBudget is the estimated-token threshold for pre-call history
	// trimming. It is a heuristic; MaxTokens is the authoritative stop.
	TrimBudget int
	// MaxTokens caps the cumulative server-reported token usage of a run.
	MaxTokens int
	// MaxIterations caps model calls per run.
	MaxIterations int
	// MaxOutputTokens is passed through to the provider per call.
	MaxOutputTokens int64
}

const (
	DefaultTrimBudget      = 180_000
	DefaultMaxTokens       = 1_000_000
	DefaultMaxIterations   = 50
	DefaultMaxOutputTokens = 1024
)

func (o Options) withDefaults() Options {
	if o.TrimBudget <= 0 {
		o.TrimBudget = telemetry.EnvInt("LOOP_TRIM_BUDGET", DefaultTrimBudget)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = telemetry.EnvInt("LOOP_MAX_TOKENS", DefaultMaxTokens)
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = telemetry.EnvInt("LOOP_MAX_ITERATIONS", DefaultMaxIterations)
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = int64(telemetry.EnvInt("LOOP_MAX_OUTPUT_TOKENS", DefaultMaxOutputTokens))
	}
	return o
}

// RunResult is the outcome of one Run call.
type RunResult struct {
	// FinalText is the model's visible text, accumulated across iterations.
	// When a limit fires a stop marker is appended so downstream consumers
	// can tell the answer is truncated.
	FinalText  string
	Reason     TerminationReason
	Iterations int
	TokensUsed int
	// History is the full conversation including this run's turns, suitable
	// for passing back into RunWithHistory.
	History []content.Message
}

// Controller wires a model and a tool dispatcher into the loop.
type Controller struct {
	model      modelclient.Model
	dispatcher *dispatch.Dispatcher
	opts       Options
}

// New builds a Controller. The model should already carry its retry layer.
func New(model modelclient.Model, dispatcher *dispatch.Dispatcher, opts Options) *Controller {
	return &Controller{model: model, dispatcher: dispatcher, opts: opts.withDefaults()}
}

// Run starts a fresh conversation with query as the only user message.
func (c *Controller) Run(ctx context.Context, query string) (*RunResult, error) {
	return c.RunWithHistory(ctx, nil, query)
}

// RunWithHistory appends query to an existing conversation and runs the loop
// until the model answers, a limit fires, or ctx is cancelled.
func (c *Controller) RunWithHistory(ctx context.Context, history []content.Message, query string) (*RunResult, error) {
	runID := uuid.NewString()
	ctx = telemetry.WithTurnID(ctx, runID)

	// The run owns its history exclusively; copy so appends can never write
	// into the caller's backing array.
	msgs := make([]content.Message, len(history), len(history)+1)
	copy(msgs, history)
	msgs = append(msgs, content.NewUserMessage(content.TextBlock{Text: query}))

	tokensUsed := 0
	finalText := ""

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iteration > c.opts.MaxIterations {
			telemetry.Emit("loop_stop", map[string]any{
				"turn_id": runID, "reason": string(ReasonMaxIterations), "iterations": iteration - 1,
			})
			return &RunResult{
				FinalText:  finalText + maxIterationsMarker,
				Reason:     ReasonMaxIterations,
				Iterations: iteration - 1,
				TokensUsed: tokensUsed,
				History:    msgs,
			}, nil
		}
		if tokensUsed > c.opts.MaxTokens {
			telemetry.Emit("loop_stop", map[string]any{
				"turn_id": runID, "reason": string(ReasonMaxTokens), "tokens_used": tokensUsed,
			})
			return &RunResult{
				FinalText:  finalText + maxTokensMarker,
				Reason:     ReasonMaxTokens,
				Iterations: iteration - 1,
				TokensUsed: tokensUsed,
				History:    msgs,
			}, nil
		}

		trimmed, stats := window.Trim(msgs, c.opts.TrimBudget)
		msgs = window.Compact(trimmed)
		if stats.RemovedMessages > 0 {
			telemetry.Emit("window_trim", map[string]any{
				"turn_id":          runID,
				"iteration":        iteration,
				"removed_messages": stats.RemovedMessages,
				"removed_groups":   stats.RemovedGroups,
				"estimated_total":  stats.Total,
			})
		}

		resp, err := c.model.Complete(ctx, modelclient.Request{
			Messages:        msgs,
			Tools:           c.dispatcher.Descriptors(),
			MaxOutputTokens: c.opts.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("model call (iteration %d): %w", iteration, err)
		}
		tokensUsed += resp.Usage.InputTokens + resp.Usage.OutputTokens

		msgs = append(msgs, content.Message{Role: content.RoleAssistant, Blocks: resp.Content})

		// Visible text accumulates across iterations; a model may narrate
		// between tool calls before its final answer.
		text, calls := splitResponse(resp.Content)
		if text != "" {
			if finalText == "" {
				finalText = text
			} else {
				finalText += "\n" + text
			}
		}

		telemetry.Emit("loop_iteration", map[string]any{
			"turn_id":     runID,
			"iteration":   iteration,
			"tool_calls":  len(calls),
			"tokens_used": tokensUsed,
			"stop_reason": resp.StopReason,
		})

		if len(calls) == 0 {
			return &RunResult{
				FinalText:  finalText,
				Reason:     ReasonCompleted,
				Iterations: iteration,
				TokensUsed: tokensUsed,
				History:    msgs,
			}, nil
		}

		results := c.dispatcher.ExecuteAll(ctx, calls)
		blocks := make([]content.Block, len(results))
		for i, r := range results {
			blocks[i] = r
		}
		msgs = append(msgs, content.NewUserMessage(blocks...))
	}
}

// splitResponse separates a model response into its joined text and the tool
// calls it issued.
func splitResponse(blocks []content.Block) (string, []content.ToolUseBlock) {
	var texts []string
	var calls []content.ToolUseBlock
	for _, b := range blocks {
		switch v := b.(type) {
		case content.TextBlock:
			texts = append(texts, v.Text)
		case content.ToolUseBlock:
			calls = append(calls, v)
		}
	}
	return strings.Join(texts, "\n"), calls
}
