// Package handler is the Lambda-facing boundary of the session store. It
// routes action-tagged requests to store operations and maps store error
// codes to HTTP statuses. Everything interesting happens below it.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/store"
)

// SessionStore is the store surface consumed by the handler.
// *store.Store satisfies this interface.
type SessionStore interface {
	CreateConversation(ctx context.Context, in store.CreateConversationInput) (string, error)
	AppendMessage(ctx context.Context, propertyID, conversationID string, msg domain.Message) error
	GetConversation(ctx context.Context, propertyID, conversationID string) (*domain.ConversationSession, error)
	ListConversations(ctx context.Context, propertyID, pageToken string) ([]domain.ConversationSession, string, error)

	CreateSession(ctx context.Context, in store.CreateSessionInput) (string, error)
	CreateFallbackSession(ctx context.Context, in store.CreateSessionInput, initErrors []string) (string, error)
	LogEvent(ctx context.Context, sessionID, eventType string, details map[string]any, errMsg, warnMsg string) error
	UpdateMetrics(ctx context.Context, sessionID string, delta map[string]any) error
	UpdateConfig(ctx context.Context, sessionID string, configDelta map[string]any) error
	Finalize(ctx context.Context, sessionID, endReason string, finalMetrics map[string]any) error
	ForceFinalize(ctx context.Context, sessionID, endReason string) error
	AppendTranscript(ctx context.Context, sessionID, role, text, timestamp string) error
	GetSession(ctx context.Context, sessionID, propertyID string) (*domain.VoiceDiagnosticsSession, error)
	ListSessions(ctx context.Context, propertyID, pageToken string) ([]domain.VoiceDiagnosticsSession, string, error)

	AttachFeedback(ctx context.Context, in store.FeedbackInput) error
}

// Handler routes session-store requests.
type Handler struct {
	store SessionStore
}

// NewHandler creates a Handler over the given store.
func NewHandler(st SessionStore) (*Handler, error) {
	if st == nil {
		return nil, errors.New("handler: store must not be nil")
	}
	return &Handler{store: st}, nil
}

type request struct {
	Action string `json:"action"`

	PropertyID     string `json:"propertyId"`
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
	OwnerUserID    string `json:"ownerUserId"`
	UserID         string `json:"userId"`
	GuestName      string `json:"guestName"`
	ReservationID  string `json:"reservationId"`
	PhoneNumber    string `json:"phoneNumber"`
	Channel        string `json:"channel"`
	PageToken      string `json:"pageToken"`

	Role        string `json:"role"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	ContextUsed string `json:"contextUsed"`

	EventType string         `json:"eventType"`
	Details   map[string]any `json:"details"`
	Error     string         `json:"error"`
	Warning   string         `json:"warning"`

	Metrics    map[string]any `json:"metrics"`
	Config     map[string]any `json:"config"`
	EndReason  string         `json:"endReason"`
	InitErrors []string       `json:"initErrors"`

	Enjoyment int `json:"enjoyment"`
	Accuracy  int `json:"accuracy"`
}

type response struct {
	OK             bool   `json:"ok"`
	ConversationID string `json:"conversationId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	NextPageToken  string `json:"nextPageToken,omitempty"`
	Error          string `json:"error,omitempty"`

	Conversation  *domain.ConversationSession      `json:"conversation,omitempty"`
	Conversations []domain.ConversationSession     `json:"conversations,omitempty"`
	Session       *domain.VoiceDiagnosticsSession  `json:"session,omitempty"`
	Sessions      []domain.VoiceDiagnosticsSession `json:"sessions,omitempty"`
}

// Handle dispatches one request. Store failures come back as status-coded
// JSON; nothing in the store raises across this boundary.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req request
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, response{OK: false, Error: "malformed_request"})
	}

	resp, err := h.dispatch(ctx, req)
	if err != nil {
		return jsonResponse(statusFor(err), response{OK: false, Error: err.Error()})
	}
	resp.OK = true
	return jsonResponse(http.StatusOK, resp)
}

func (h *Handler) dispatch(ctx context.Context, req request) (response, error) {
	switch req.Action {
	case "create_conversation":
		id, err := h.store.CreateConversation(ctx, store.CreateConversationInput{
			PropertyID:    req.PropertyID,
			OwnerUserID:   req.OwnerUserID,
			GuestName:     req.GuestName,
			ReservationID: req.ReservationID,
			PhoneNumber:   req.PhoneNumber,
			Channel:       req.Channel,
		})
		return response{ConversationID: id}, err

	case "append_message":
		err := h.store.AppendMessage(ctx, req.PropertyID, req.ConversationID, domain.Message{
			Role:        req.Role,
			Text:        req.Text,
			Timestamp:   req.Timestamp,
			PhoneNumber: req.PhoneNumber,
			ContextUsed: req.ContextUsed,
		})
		return response{}, err

	case "get_conversation":
		conv, err := h.store.GetConversation(ctx, req.PropertyID, req.ConversationID)
		return response{Conversation: conv}, err

	case "list_conversations":
		convs, next, err := h.store.ListConversations(ctx, req.PropertyID, req.PageToken)
		return response{Conversations: convs, NextPageToken: next}, err

	case "create_session":
		id, err := h.store.CreateSession(ctx, store.CreateSessionInput{
			PropertyID:    req.PropertyID,
			SessionID:     req.SessionID,
			OwnerUserID:   req.OwnerUserID,
			GuestName:     req.GuestName,
			ReservationID: req.ReservationID,
		})
		return response{SessionID: id}, err

	case "create_fallback_session":
		id, err := h.store.CreateFallbackSession(ctx, store.CreateSessionInput{
			PropertyID:    req.PropertyID,
			SessionID:     req.SessionID,
			OwnerUserID:   req.OwnerUserID,
			GuestName:     req.GuestName,
			ReservationID: req.ReservationID,
		}, req.InitErrors)
		return response{SessionID: id}, err

	case "log_event":
		err := h.store.LogEvent(ctx, req.SessionID, req.EventType, req.Details, req.Error, req.Warning)
		return response{SessionID: req.SessionID}, err

	case "update_metrics":
		err := h.store.UpdateMetrics(ctx, req.SessionID, req.Metrics)
		return response{SessionID: req.SessionID}, err

	case "update_config":
		err := h.store.UpdateConfig(ctx, req.SessionID, req.Config)
		return response{SessionID: req.SessionID}, err

	case "finalize":
		err := h.store.Finalize(ctx, req.SessionID, req.EndReason, req.Metrics)
		return response{SessionID: req.SessionID}, err

	case "force_finalize":
		err := h.store.ForceFinalize(ctx, req.SessionID, req.EndReason)
		return response{SessionID: req.SessionID}, err

	case "append_transcript":
		err := h.store.AppendTranscript(ctx, req.SessionID, req.Role, req.Text, req.Timestamp)
		return response{SessionID: req.SessionID}, err

	case "get_session":
		sess, err := h.store.GetSession(ctx, req.SessionID, req.PropertyID)
		return response{Session: sess}, err

	case "list_sessions":
		sessions, next, err := h.store.ListSessions(ctx, req.PropertyID, req.PageToken)
		return response{Sessions: sessions, NextPageToken: next}, err

	case "submit_feedback":
		err := h.store.AttachFeedback(ctx, store.FeedbackInput{
			SessionID:      req.SessionID,
			ConversationID: req.ConversationID,
			PropertyID:     req.PropertyID,
			UserID:         req.UserID,
			Enjoyment:      req.Enjoyment,
			Accuracy:       req.Accuracy,
		})
		return response{}, err

	default:
		return response{}, &store.Error{Code: store.ErrorInvalidInput, Reason: "unknown_action"}
	}
}

func statusFor(err error) int {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case store.ErrorInvalidInput:
			return http.StatusBadRequest
		case store.ErrorNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

func jsonResponse(status int, body response) (events.APIGatewayProxyResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}, nil
}
