package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveConversationStatus(t *testing.T) {
	cases := map[string]string{
		"completed":    ConversationCompleted,
		"CLOSED":       ConversationCompleted,
		"failed":       ConversationFailed,
		"Error":        ConversationFailed,
		"initializing": ConversationPending,
		"pending":      ConversationPending,
		"":             ConversationActive,
		"anything":     ConversationActive,
		"  closed  ":   ConversationCompleted,
	}
	for raw, want := range cases {
		require.Equal(t, want, DeriveConversationStatus(raw), "raw=%q", raw)
	}
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(StatusCompleted))
	require.True(t, IsTerminal(StatusFailed))
	require.True(t, IsTerminal(StatusFallbackCompleted))
	require.False(t, IsTerminal(StatusEnded))
	require.False(t, IsTerminal(StatusActive))
	require.False(t, IsTerminal(StatusInitializing))
	require.False(t, IsTerminal(StatusFallbackMode))
	require.False(t, IsTerminal(StatusUnknown))
}

func TestTransitionForEvent(t *testing.T) {
	status, ends := TransitionForEvent(EventCallStarted)
	require.Equal(t, StatusActive, status)
	require.False(t, ends)

	status, ends = TransitionForEvent(EventWebsocketConnected)
	require.Equal(t, StatusActive, status)
	require.False(t, ends)

	status, ends = TransitionForEvent(EventCallEnded)
	require.Equal(t, StatusEnded, status)
	require.True(t, ends)

	status, ends = TransitionForEvent(EventWebsocketClosedUnexpected)
	require.Equal(t, StatusEnded, status)
	require.True(t, ends)

	status, ends = TransitionForEvent(EventCallFailed)
	require.Equal(t, StatusFailed, status)
	require.True(t, ends)

	status, ends = TransitionForEvent("AUDIO_LEVEL_SAMPLE")
	require.Empty(t, status)
	require.False(t, ends)
}

func TestFinalStatus(t *testing.T) {
	require.Equal(t, StatusCompleted, FinalStatus("user_ended", 0))
	require.Equal(t, StatusCompleted, FinalStatus("  Normal ", 0))
	require.Equal(t, StatusFailed, FinalStatus("user_ended", 2))
	require.Equal(t, StatusFailed, FinalStatus("connection_error", 0))
	require.Equal(t, StatusFailed, FinalStatus("timeout", 0))
	require.Equal(t, StatusCompleted, FinalStatus("something_else", 5))
	require.Equal(t, StatusCompleted, FinalStatus("", 0))
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "PROPERTY#p1", PropertyPK("p1"))
	require.Equal(t, "SESSION#s1", SessionPK("s1"))
	require.Equal(t, ItemKey{PK: "PROPERTY#p1", SK: "CONVERSATION#c1"}, ConversationKey("p1", "c1"))
	require.Equal(t, ItemKey{PK: "PROPERTY#p1", SK: "VOICE_DIAGNOSTICS#s1"}, VoiceKey("p1", "s1"))
	require.Equal(t, ItemKey{PK: "SESSION#s1", SK: "POINTER"}, PointerKey("s1"))
}

func TestFallbackSK_NanosecondPrecision(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 123456789, time.UTC)
	sk := FallbackSK(ts)
	require.Equal(t, "FALLBACK#2026-08-30T10:00:00.123456789Z", sk)

	later := FallbackSK(ts.Add(time.Nanosecond))
	require.NotEqual(t, sk, later)
	require.Less(t, sk, later)
}
