package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttachFeedback_EnjoymentOutOfRange(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.AttachFeedback(context.Background(), FeedbackInput{SessionID: "s1", Enjoyment: 4, Accuracy: 5})
	requireStoreError(t, err, ErrorInvalidInput)
}

func TestAttachFeedback_AccuracyOutOfRange(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.AttachFeedback(context.Background(), FeedbackInput{SessionID: "s1", Enjoyment: 2, Accuracy: 0})
	requireStoreError(t, err, ErrorInvalidInput)
}

func TestAttachFeedback_NoTarget(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.AttachFeedback(context.Background(), FeedbackInput{Enjoyment: 2, Accuracy: 4})
	requireStoreError(t, err, ErrorInvalidInput)
}

func TestAttachFeedback_ToVoiceSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	sessionID, err := s.CreateSession(ctx, CreateSessionInput{PropertyID: "prop-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{SessionID: sessionID, Enjoyment: 3, Accuracy: 5})
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, sessionID, "")
	require.NoError(t, err)
	require.NotNil(t, sess.Feedback)
	require.Equal(t, 3, sess.Feedback.Enjoyment)
	require.Equal(t, 5, sess.Feedback.Accuracy)
	require.NotEmpty(t, sess.Feedback.FeedbackID)
	require.NotEmpty(t, sess.Feedback.SubmittedAt)
}

func TestAttachFeedback_ToNamedConversation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{ConversationID: id, PropertyID: "prop-1", Enjoyment: 1, Accuracy: 2})
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, "prop-1", id)
	require.NoError(t, err)
	require.NotNil(t, conv.Feedback)
	require.Equal(t, 1, conv.Feedback.Enjoyment)
}

func TestAttachFeedback_FallsThroughMissingSessionToConversation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{
		SessionID:      "never-created",
		ConversationID: id,
		PropertyID:     "prop-1",
		Enjoyment:      2,
		Accuracy:       4,
	})
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, "prop-1", id)
	require.NoError(t, err)
	require.NotNil(t, conv.Feedback)
}

func TestAttachFeedback_ToLatestConversationByUser(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	older, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	newer, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{UserID: "user-1", Enjoyment: 3, Accuracy: 5})
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, "prop-1", newer)
	require.NoError(t, err)
	require.NotNil(t, conv.Feedback)

	conv, err = s.GetConversation(ctx, "prop-1", older)
	require.NoError(t, err)
	require.Nil(t, conv.Feedback)
}

func TestAttachFeedback_LatestConversationHonorsPropertyFilter(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	match, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-2", OwnerUserID: "user-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{UserID: "user-1", PropertyID: "prop-1", Enjoyment: 2, Accuracy: 3})
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, "prop-1", match)
	require.NoError(t, err)
	require.NotNil(t, conv.Feedback)
}

func TestAttachFeedback_SkipsVoiceRecordsOnOwnerIndex(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, CreateConversationInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	sessionID, err := s.CreateSession(ctx, CreateSessionInput{PropertyID: "prop-1", OwnerUserID: "user-1"})
	require.NoError(t, err)

	err = s.AttachFeedback(ctx, FeedbackInput{UserID: "user-1", Enjoyment: 0, Accuracy: 1})
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, "prop-1", id)
	require.NoError(t, err)
	require.NotNil(t, conv.Feedback, "feedback by user lands on the conversation, not the newer voice record")

	sess, err := s.GetSession(ctx, sessionID, "")
	require.NoError(t, err)
	require.Nil(t, sess.Feedback)
}

func TestAttachFeedback_NothingMatches(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.AttachFeedback(context.Background(), FeedbackInput{UserID: "stranger", Enjoyment: 2, Accuracy: 4})
	requireStoreError(t, err, ErrorNotFound)
}

func TestAttachFeedback_LatestMergeWins(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	sessionID, err := s.CreateSession(ctx, CreateSessionInput{PropertyID: "prop-1"})
	require.NoError(t, err)

	require.NoError(t, s.AttachFeedback(ctx, FeedbackInput{SessionID: sessionID, Enjoyment: 1, Accuracy: 1}))
	require.NoError(t, s.AttachFeedback(ctx, FeedbackInput{SessionID: sessionID, Enjoyment: 3, Accuracy: 5}))

	sess, err := s.GetSession(ctx, sessionID, "")
	require.NoError(t, err)
	require.Equal(t, 3, sess.Feedback.Enjoyment)
	require.Equal(t, 5, sess.Feedback.Accuracy)
}
