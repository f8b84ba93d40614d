package window

import (
	"fmt"
	"os"

	"github.com/agentloop-dev/agentloop/content"
)

// GroupKind denotes the atomic unit type when trimming a history.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the history.
// Kind indicates whether it is a singleton or a validated tool-call pair.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupMessages splits a history into atomic units that preserve tool-call
// pairs, so trimming whole groups can never orphan one half of a pair.
// Invariants:
//   - A pair is exactly two adjacent messages: assistant(tool_use...) then
//     user(tool_result...).
//   - In the user message, all tool_result blocks come first; text (if any)
//     comes after.
//   - Parallel completeness: every tool_use id in the assistant message must
//     appear exactly once among the user message's leading tool_results, and
//     no extra results are allowed.
//   - tool_result blocks with IsError=true group the same as successes.
func GroupMessages(msgs []content.Message) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if m.Role == content.RoleAssistant {
			useIDs := toolUseIDSet(m)
			if len(useIDs) > 0 {
				if i+1 < len(msgs) && msgs[i+1].Role == content.RoleUser {
					valid, resultIDs := leadingResultIDs(msgs[i+1])
					if valid && coversAll(resultIDs, useIDs) && noExtras(resultIDs, useIDs) {
						groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
						i += 2
						continue
					}
					reason := "unknown"
					switch {
					case !valid:
						reason = "ordering_invalid"
					case !coversAll(resultIDs, useIDs):
						reason = "missing_results"
					case !noExtras(resultIDs, useIDs):
						reason = "extra_results"
					}
					vlogf("unpaired assistant turn: reason=%s idx=%d", reason, i)
				} else {
					vlogf("unpaired assistant turn: reason=not_followed_by_user idx=%d", i)
				}
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// groupCost sums the estimated size of all messages in g.
func groupCost(g Group, msgs []content.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(msgs); i++ {
		total += content.EstimateMessage(msgs[i])
	}
	return total
}

func toolUseIDSet(m content.Message) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, id := range content.ToolUseIDs(m) {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// leadingResultIDs inspects a user message and returns:
//   - valid=false if any tool_result appears after a non-result block
//   - resultIDs: the ids of the leading tool_result segment.
func leadingResultIDs(m content.Message) (valid bool, resultIDs map[string]struct{}) {
	resultIDs = make(map[string]struct{})
	seenNonResult := false
	for _, b := range m.Blocks {
		if tr, ok := b.(content.ToolResultBlock); ok {
			if seenNonResult {
				return false, resultIDs
			}
			if tr.ToolUseID != "" {
				resultIDs[tr.ToolUseID] = struct{}{}
			}
			continue
		}
		seenNonResult = true
	}
	return true, resultIDs
}

func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

func noExtras(have, allowed map[string]struct{}) bool {
	for id := range have {
		if _, ok := allowed[id]; !ok {
			return false
		}
	}
	return true
}

// minimal verbose logging when LOOP_VERBOSE_WINDOW_LOGS=1
var verbose = os.Getenv("LOOP_VERBOSE_WINDOW_LOGS") == "1"

func vlogf(format string, args ...any) {
	if verbose {
		fmt.Printf("[window] "+format+"\n", args...)
	}
}
