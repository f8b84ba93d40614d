package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/agentloop-dev/agentloop/agent"
	"github.com/agentloop-dev/agentloop/internal/dispatch"
	"github.com/agentloop-dev/agentloop/internal/modelclient"
	"github.com/agentloop-dev/agentloop/memory"
	"github.com/agentloop-dev/agentloop/tools"
)

const persistPath = "conversation.json"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newModel picks the provider from LOOP_MODEL_PROVIDER (default anthropic)
// and wraps it in the retry layer.
func newModel() (modelclient.Model, error) {
	provider := os.Getenv("LOOP_MODEL_PROVIDER")
	if provider == "" {
		provider = "anthropic"
	}
	switch provider {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, errors.New("missing ANTHROPIC_API_KEY; export it before running")
		}
		return modelclient.WithRetry(modelclient.NewAnthropicModel(modelclient.DefaultAnthropicModel)), nil
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, errors.New("missing OPENAI_API_KEY; export it before running")
		}
		return modelclient.WithRetry(modelclient.NewOpenAIModel(modelclient.DefaultOpenAIModel)), nil
	default:
		return nil, fmt.Errorf("unknown LOOP_MODEL_PROVIDER %q (want anthropic or openai)", provider)
	}
}

func run() error {
	model, err := newModel()
	if err != nil {
		return err
	}

	// Optional workflow recording: LOOP_RECORD_WORKFLOW=path saves every
	// tool call of the session.
	var exec tools.Executor = tools.NewLocalExecutor(tools.Registry()...)
	var rec *tools.RecordingExecutor
	if recordPath := os.Getenv("LOOP_RECORD_WORKFLOW"); recordPath != "" {
		rec = tools.NewRecordingExecutor(exec)
		exec = rec
		defer func() {
			if err := tools.SaveWorkflow(recordPath, rec.Workflow("session")); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save workflow: %v\n", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	dispatcher, err := dispatch.New(ctx, exec, dispatch.Options{})
	if err != nil {
		return fmt.Errorf("initialize dispatcher: %w", err)
	}
	controller := agent.New(model, dispatcher, agent.Options{})

	history, err := memory.LoadConversation(persistPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load persisted conversation: %v\n", err)
	}

	rl, err := readline.New("\033[94mYou\033[0m: ")
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Chat with the agent (Ctrl-C to quit)")
	for {
		line, err := rl.Readline()
		if err != nil {
			// Ctrl-C on an empty line, Ctrl-D, or closed stdin all end
			// the session.
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		res, err := controller.RunWithHistory(ctx, history, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		history = res.History

		fmt.Printf("\033[93mAgent\033[0m: %s\n", res.FinalText)
		if res.Reason != agent.ReasonCompleted {
			fmt.Fprintf(os.Stderr, "note: run stopped early (%s) after %d iterations, %d tokens\n",
				res.Reason, res.Iterations, res.TokensUsed)
		}

		if err := memory.SaveConversation(persistPath, history); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save conversation: %v\n", err)
		}
	}
}
