package libris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/googleapi"
)

// EventKind discriminates the incremental events emitted during a turn.
type EventKind string

const (
	// EventText is an assistant text fragment, streamed as it arrives.
	EventText EventKind = "text"
	// EventToolCall announces a tool invocation the model requested.
	EventToolCall EventKind = "tool_call"
	// EventToolResult summarizes a completed tool invocation.
	EventToolResult EventKind = "tool_result"
	// EventError terminates a failed turn.
	EventError EventKind = "error"
)

// ErrorCategory classifies a terminal model-call failure.
type ErrorCategory string

const (
	CategoryInvalidCredential ErrorCategory = "invalid_credential"
	CategoryPermissionDenied  ErrorCategory = "permission_denied"
	CategoryRateLimited       ErrorCategory = "rate_limited"
	CategoryNetwork           ErrorCategory = "network"
	CategoryOther             ErrorCategory = "other"
)

// Event is one entry in the ordered stream a turn produces.
type Event struct {
	Kind EventKind

	// Text carries the fragment for EventText, or the human-readable
	// message for EventError.
	Text string

	// Tool, Args, and Size describe tool events. Args is a truncated
	// preview; Size is the encoded result length in bytes.
	Tool string
	Args string
	Size int

	// Category is set for EventError only.
	Category ErrorCategory
}

// classifyError buckets a model-call failure by inspecting HTTP status codes
// where available and falling back to message heuristics, mirroring how the
// provider reports credential, quota, and transport problems.
func classifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryOther
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 400, 401:
			if containsAny(err.Error(), "api key", "api_key") {
				return CategoryInvalidCredential
			}
			if gerr.Code == 401 {
				return CategoryInvalidCredential
			}
		case 403:
			return CategoryPermissionDenied
		case 429:
			return CategoryRateLimited
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api_key_invalid", "api key not valid", "invalid api key"):
		return CategoryInvalidCredential
	case containsAny(msg, "permission_denied", "permission denied", "403"):
		return CategoryPermissionDenied
	case containsAny(msg, "resource_exhausted", "rate limit", "quota", "429"):
		return CategoryRateLimited
	case containsAny(msg, "connection", "network", "no such host", "timeout", "dial tcp"):
		return CategoryNetwork
	default:
		return CategoryOther
	}
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// errorText renders the user-facing message for a terminal error event.
func errorText(cat ErrorCategory, err error) string {
	switch cat {
	case CategoryInvalidCredential:
		return "Invalid API key. Check the configured credential and try again."
	case CategoryPermissionDenied:
		return "Permission denied. Your key may not have access to this model."
	case CategoryRateLimited:
		return "Rate limit reached. Please wait a moment and try again."
	case CategoryNetwork:
		return "Network error. Check your connection and try again."
	default:
		return fmt.Sprintf("Model error: %s", truncate(err.Error(), 300))
	}
}

// previewArgs renders a bounded JSON preview of tool arguments for display.
func previewArgs(args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return truncate(string(raw), 80)
}

// payloadSize reports the encoded size of a tool result.
func payloadSize(payload map[string]any) int {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(raw)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
