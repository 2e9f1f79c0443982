package domain

import "strings"

// Voice session lifecycle states.
const (
	StatusInitializing      = "INITIALIZING"
	StatusActive            = "ACTIVE"
	StatusEnded             = "ENDED"
	StatusCompleted         = "COMPLETED"
	StatusFailed            = "FAILED"
	StatusFallbackMode      = "FALLBACK_MODE"
	StatusFallbackCompleted = "FALLBACK_COMPLETED"
	StatusUnknown           = "UNKNOWN"
)

// Event types recognised by the voice session state machine.
const (
	EventCallStarted               = "CALL_STARTED"
	EventWebsocketConnected        = "WEBSOCKET_CONNECTED"
	EventCallEnded                 = "CALL_ENDED"
	EventCallFailed                = "CALL_FAILED"
	EventWebsocketClosedUnexpected = "WEBSOCKET_CLOSED_UNEXPECTED"
	EventSessionFinalized          = "SESSION_FINALIZED"
)

// Derived conversation statuses.
const (
	ConversationActive    = "active"
	ConversationCompleted = "completed"
	ConversationFailed    = "failed"
	ConversationPending   = "pending"
)

// DeriveConversationStatus maps a raw stored status value to its canonical
// conversation state. It is the single derivation shared by every read path.
func DeriveConversationStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "closed":
		return ConversationCompleted
	case "failed", "error":
		return ConversationFailed
	case "initializing", "pending":
		return ConversationPending
	default:
		return ConversationActive
	}
}

// IsTerminal reports whether a voice session status admits no further
// transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusFallbackCompleted:
		return true
	}
	return false
}

// TransitionForEvent returns the status an event moves a session to and
// whether the event ends the call (setting endTime). An empty status means
// the event does not change lifecycle state.
func TransitionForEvent(eventType string) (status string, endsCall bool) {
	switch eventType {
	case EventCallStarted, EventWebsocketConnected:
		return StatusActive, false
	case EventCallEnded, EventWebsocketClosedUnexpected:
		return StatusEnded, true
	case EventCallFailed:
		return StatusFailed, true
	}
	return "", false
}

// FinalStatus decides the terminal status recorded by Finalize. Known
// successful end reasons map to COMPLETED unless the final metrics report
// errors; known failure reasons map to FAILED; anything else defaults to
// COMPLETED.
func FinalStatus(endReason string, totalErrors int) string {
	reason := strings.ToLower(strings.TrimSpace(endReason))
	switch {
	case SuccessEndReasons[reason]:
		if totalErrors > 0 {
			return StatusFailed
		}
		return StatusCompleted
	case FailureEndReasons[reason]:
		return StatusFailed
	default:
		return StatusCompleted
	}
}
