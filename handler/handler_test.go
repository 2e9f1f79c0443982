package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/store"
)

// stubStore records the last call per operation and returns canned results.
type stubStore struct {
	err error

	createConversationIn store.CreateConversationInput
	appendedMsg          domain.Message
	appendedProperty     string
	appendedConversation string
	conversation         *domain.ConversationSession
	conversations        []domain.ConversationSession

	createSessionIn  store.CreateSessionInput
	fallbackIn       store.CreateSessionInput
	fallbackErrors   []string
	loggedEventType  string
	loggedDetails    map[string]any
	loggedErr        string
	loggedWarn       string
	metricsDelta     map[string]any
	configDelta      map[string]any
	finalizedReason  string
	finalizedMetrics map[string]any
	forcedReason     string
	transcriptRole   string
	transcriptText   string
	session          *domain.VoiceDiagnosticsSession
	sessions         []domain.VoiceDiagnosticsSession
	feedbackIn       store.FeedbackInput

	nextToken string
}

func (s *stubStore) CreateConversation(_ context.Context, in store.CreateConversationInput) (string, error) {
	s.createConversationIn = in
	return "conv-1", s.err
}

func (s *stubStore) AppendMessage(_ context.Context, propertyID, conversationID string, msg domain.Message) error {
	s.appendedProperty, s.appendedConversation, s.appendedMsg = propertyID, conversationID, msg
	return s.err
}

func (s *stubStore) GetConversation(_ context.Context, _, _ string) (*domain.ConversationSession, error) {
	return s.conversation, s.err
}

func (s *stubStore) ListConversations(_ context.Context, _, _ string) ([]domain.ConversationSession, string, error) {
	return s.conversations, s.nextToken, s.err
}

func (s *stubStore) CreateSession(_ context.Context, in store.CreateSessionInput) (string, error) {
	s.createSessionIn = in
	return "sess-1", s.err
}

func (s *stubStore) CreateFallbackSession(_ context.Context, in store.CreateSessionInput, initErrors []string) (string, error) {
	s.fallbackIn, s.fallbackErrors = in, initErrors
	return "sess-fb", s.err
}

func (s *stubStore) LogEvent(_ context.Context, _, eventType string, details map[string]any, errMsg, warnMsg string) error {
	s.loggedEventType, s.loggedDetails, s.loggedErr, s.loggedWarn = eventType, details, errMsg, warnMsg
	return s.err
}

func (s *stubStore) UpdateMetrics(_ context.Context, _ string, delta map[string]any) error {
	s.metricsDelta = delta
	return s.err
}

func (s *stubStore) UpdateConfig(_ context.Context, _ string, configDelta map[string]any) error {
	s.configDelta = configDelta
	return s.err
}

func (s *stubStore) Finalize(_ context.Context, _, endReason string, finalMetrics map[string]any) error {
	s.finalizedReason, s.finalizedMetrics = endReason, finalMetrics
	return s.err
}

func (s *stubStore) ForceFinalize(_ context.Context, _, endReason string) error {
	s.forcedReason = endReason
	return s.err
}

func (s *stubStore) AppendTranscript(_ context.Context, _, role, text, _ string) error {
	s.transcriptRole, s.transcriptText = role, text
	return s.err
}

func (s *stubStore) GetSession(_ context.Context, _, _ string) (*domain.VoiceDiagnosticsSession, error) {
	return s.session, s.err
}

func (s *stubStore) ListSessions(_ context.Context, _, _ string) ([]domain.VoiceDiagnosticsSession, string, error) {
	return s.sessions, s.nextToken, s.err
}

func (s *stubStore) AttachFeedback(_ context.Context, in store.FeedbackInput) error {
	s.feedbackIn = in
	return s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/sessions",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody(t *testing.T, body string) response {
	t.Helper()
	var v response
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustHandler(t *testing.T, st SessionStore) *Handler {
	t.Helper()
	h, err := NewHandler(st)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_MalformedBody(t *testing.T) {
	h := mustHandler(t, &stubStore{})
	resp, err := h.Handle(context.Background(), makeEvent(`{not json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "malformed_request", parseBody(t, resp.Body).Error)
}

func TestHandle_UnknownAction(t *testing.T) {
	h := mustHandler(t, &stubStore{})
	resp, err := h.Handle(context.Background(), makeEvent(`{"action":"reboot"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, parseBody(t, resp.Body).Error, "unknown_action")
}

func TestHandle_CreateConversation(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"action":"create_conversation","propertyId":"prop-1","ownerUserId":"user-1","guestName":"Alice","channel":"text_chat"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody(t, resp.Body)
	require.True(t, out.OK)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, "prop-1", st.createConversationIn.PropertyID)
	require.Equal(t, "Alice", st.createConversationIn.GuestName)
}

func TestHandle_AppendMessage(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"action":"append_message","propertyId":"prop-1","conversationId":"conv-1","role":"guest","text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "prop-1", st.appendedProperty)
	require.Equal(t, "conv-1", st.appendedConversation)
	require.Equal(t, "guest", st.appendedMsg.Role)
	require.Equal(t, "hi", st.appendedMsg.Text)
}

func TestHandle_GetConversation(t *testing.T) {
	st := &stubStore{conversation: &domain.ConversationSession{ConversationID: "conv-1", GuestName: "Alice"}}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"action":"get_conversation","propertyId":"prop-1","conversationId":"conv-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := parseBody(t, resp.Body)
	require.NotNil(t, out.Conversation)
	require.Equal(t, "Alice", out.Conversation.GuestName)
}

func TestHandle_ListConversations_PageToken(t *testing.T) {
	st := &stubStore{conversations: []domain.ConversationSession{{ConversationID: "c1"}}, nextToken: "tok"}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(`{"action":"list_conversations","propertyId":"prop-1"}`))
	require.NoError(t, err)
	out := parseBody(t, resp.Body)
	require.Len(t, out.Conversations, 1)
	require.Equal(t, "tok", out.NextPageToken)
}

func TestHandle_CreateSession(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"action":"create_session","propertyId":"prop-1","sessionId":"call-9"}`))
	require.NoError(t, err)
	require.Equal(t, "sess-1", parseBody(t, resp.Body).SessionID)
	require.Equal(t, "call-9", st.createSessionIn.SessionID)
}

func TestHandle_CreateFallbackSession(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"action":"create_fallback_session","propertyId":"prop-1","initErrors":["provider down"]}`))
	require.NoError(t, err)
	require.Equal(t, "sess-fb", parseBody(t, resp.Body).SessionID)
	require.Equal(t, []string{"provider down"}, st.fallbackErrors)
}

func TestHandle_LogEvent(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"action":"log_event","sessionId":"s1","eventType":"CALL_STARTED","details":{"provider":"pstn"},"warning":"slow"}`))
	require.NoError(t, err)
	require.Equal(t, "CALL_STARTED", st.loggedEventType)
	require.Equal(t, map[string]any{"provider": "pstn"}, st.loggedDetails)
	require.Equal(t, "slow", st.loggedWarn)
}

func TestHandle_UpdateMetricsAndConfig(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"action":"update_metrics","sessionId":"s1","metrics":{"avg_latency_ms":42}}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"avg_latency_ms": float64(42)}, st.metricsDelta)

	_, err = h.Handle(context.Background(), makeEvent(
		`{"action":"update_config","sessionId":"s1","config":{"codec":"opus"}}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"codec": "opus"}, st.configDelta)
}

func TestHandle_FinalizeAndForceFinalize(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"action":"finalize","sessionId":"s1","endReason":"user_ended","metrics":{"totalErrors":0}}`))
	require.NoError(t, err)
	require.Equal(t, "user_ended", st.finalizedReason)
	require.Equal(t, map[string]any{"totalErrors": float64(0)}, st.finalizedMetrics)

	_, err = h.Handle(context.Background(), makeEvent(
		`{"action":"force_finalize","sessionId":"s1","endReason":"operator"}`))
	require.NoError(t, err)
	require.Equal(t, "operator", st.forcedReason)
}

func TestHandle_AppendTranscript(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"action":"append_transcript","sessionId":"s1","role":"guest","text":"hello?"}`))
	require.NoError(t, err)
	require.Equal(t, "guest", st.transcriptRole)
	require.Equal(t, "hello?", st.transcriptText)
}

func TestHandle_GetSession(t *testing.T) {
	st := &stubStore{session: &domain.VoiceDiagnosticsSession{SessionID: "s1", Status: domain.StatusCompleted}}
	h := mustHandler(t, st)

	resp, err := h.Handle(context.Background(), makeEvent(`{"action":"get_session","sessionId":"s1"}`))
	require.NoError(t, err)
	out := parseBody(t, resp.Body)
	require.NotNil(t, out.Session)
	require.Equal(t, domain.StatusCompleted, out.Session.Status)
}

func TestHandle_SubmitFeedback(t *testing.T) {
	st := &stubStore{}
	h := mustHandler(t, st)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"action":"submit_feedback","sessionId":"s1","enjoyment":3,"accuracy":5}`))
	require.NoError(t, err)
	require.Equal(t, "s1", st.feedbackIn.SessionID)
	require.Equal(t, 3, st.feedbackIn.Enjoyment)
	require.Equal(t, 5, st.feedbackIn.Accuracy)
}

func TestHandle_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&store.Error{Code: store.ErrorInvalidInput, Reason: "missing_property_id"}, http.StatusBadRequest},
		{&store.Error{Code: store.ErrorNotFound, Reason: "session_not_found"}, http.StatusNotFound},
		{&store.Error{Code: store.ErrorStorage, Reason: "update_failed"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		st := &stubStore{err: tc.err}
		h := mustHandler(t, st)
		resp, err := h.Handle(context.Background(), makeEvent(`{"action":"get_session","sessionId":"s1"}`))
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode)
		require.False(t, parseBody(t, resp.Body).OK)
	}
}
