package modelclient

import (
	"context"

	"github.com/agentloop-dev/agentloop/content"
	"github.com/agentloop-dev/agentloop/tools"
)

// Request captures one normalized completion call.
type Request struct {
	Messages        []content.Message
	Tools           []tools.Descriptor
	MaxOutputTokens int64
}

// Usage is the server-reported token accounting for one completion.
// These counts are authoritative; the loop's stopping condition uses them,
// never the pre-call heuristics.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the normalized result of a completion call.
type Response struct {
	Content    []content.Block
	Usage      Usage
	StopReason string
}

// Model is the minimal completion interface the loop depends on. Provider
// implementations classify their failures: retryable upstream conditions are
// wrapped in *TransientError, everything else propagates as-is.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// retryableStatus reports whether an HTTP status signals temporary upstream
// unavailability (rate limiting, overload, server errors).
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// stringSlice coerces a decoded JSON value into []string, tolerating both
// []string and []any forms of a schema's "required" list.
func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
