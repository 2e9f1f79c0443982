package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateSessionFields_WritesSummary(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	sessionID, err := s.CreateSession(ctx, CreateSessionInput{PropertyID: "prop-1"})
	require.NoError(t, err)

	err = s.UpdateSessionFields(ctx, sessionID, map[string]any{"summary": "guest reported echo on the line"})
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, sessionID, "")
	require.NoError(t, err)
	require.Equal(t, "guest reported echo on the line", sess.Summary)
}

func TestUpdateSessionFields_UnresolvedSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.UpdateSessionFields(context.Background(), "nope", map[string]any{"summary": "x"})
	requireStoreError(t, err, ErrorNotFound)
}

func TestUpdateSessionFields_NoFields(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.UpdateSessionFields(context.Background(), "s1", nil)
	requireStoreError(t, err, ErrorInvalidInput)
}

func TestScanMissingSummaries_FindsBothRecordKinds(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	convID, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)
	sessionID, err := s.CreateSession(ctx, CreateSessionInput{PropertyID: "prop-1"})
	require.NoError(t, err)

	summarized, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateConversation(ctx, "prop-1", summarized, map[string]any{"summary": "done"}))

	targets, err := s.ScanMissingSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	byID := map[string]SummaryTarget{}
	for _, target := range targets {
		if target.IsSession() {
			byID[target.SessionID] = target
		} else {
			byID[target.ConversationID] = target
		}
	}
	require.Contains(t, byID, convID)
	require.Contains(t, byID, sessionID)
	require.True(t, byID[sessionID].IsSession())
	require.Equal(t, "prop-1", byID[convID].PropertyID)
}
