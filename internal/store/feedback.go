package store

import (
	"context"

	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// FeedbackInput is a guest rating payload with whatever identifiers the
// caller has. Attachment tries the most specific target first.
type FeedbackInput struct {
	SessionID      string
	ConversationID string
	PropertyID     string
	UserID         string
	Enjoyment      int
	Accuracy       int
}

// AttachFeedback merges the rating onto the most specific matching record:
// the named voice session, then the named conversation, then the user's
// most recent conversation (optionally filtered by property) via the owner
// index. Each attempt is a single best-effort update of the rating fields
// only; the first success wins.
func (s *Store) AttachFeedback(ctx context.Context, in FeedbackInput) error {
	if in.Enjoyment < 0 || in.Enjoyment > 3 {
		return newError(ErrorInvalidInput, "enjoyment_out_of_range", nil)
	}
	if in.Accuracy < 1 || in.Accuracy > 5 {
		return newError(ErrorInvalidInput, "accuracy_out_of_range", nil)
	}
	if in.SessionID == "" && in.ConversationID == "" && in.UserID == "" {
		return newError(ErrorInvalidInput, "no_feedback_target", nil)
	}

	feedback := domain.Feedback{
		Enjoyment:   in.Enjoyment,
		Accuracy:    in.Accuracy,
		FeedbackID:  newUUID(),
		SubmittedAt: s.nowRFC3339(),
	}

	if in.SessionID != "" {
		if s.attachToSession(ctx, in.SessionID, feedback) {
			return nil
		}
	}
	if in.ConversationID != "" && in.PropertyID != "" {
		if s.attachToConversation(ctx, in.PropertyID, in.ConversationID, feedback) {
			return nil
		}
	}
	if in.UserID != "" {
		if s.attachToLatestConversation(ctx, in.UserID, in.PropertyID, feedback) {
			return nil
		}
	}

	s.log.Warn("feedback could not be attached to any record",
		zap.String("session_id", in.SessionID),
		zap.String("conversation_id", in.ConversationID),
		zap.String("user_id", in.UserID))
	return newError(ErrorNotFound, "feedback_target_not_found", nil)
}

func (s *Store) attachToSession(ctx context.Context, sessionID string, feedback domain.Feedback) bool {
	key, found := s.resolve(ctx, sessionID)
	if !found {
		return false
	}
	err := s.table.Update(ctx, key.PK, key.SK, feedbackOps(feedback, s.nowRFC3339()))
	if err != nil {
		s.log.Warn("failed to attach feedback to session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Store) attachToConversation(ctx context.Context, propertyID, conversationID string, feedback domain.Feedback) bool {
	// Only attach to conversations that exist; the self-healing append
	// defaults have no business here.
	key := domain.ConversationKey(propertyID, conversationID)
	item, err := s.table.Get(ctx, key.PK, key.SK)
	if err != nil || item == nil {
		return false
	}
	if err := s.table.Update(ctx, key.PK, key.SK, feedbackOps(feedback, s.nowRFC3339())); err != nil {
		s.log.Warn("failed to attach feedback to conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Store) attachToLatestConversation(ctx context.Context, userID, propertyID string, feedback domain.Feedback) bool {
	pageToken := ""
	for {
		page, err := s.table.QueryOwner(ctx, userID, pageToken)
		if err != nil {
			s.log.Warn("owner index query failed during feedback attachment",
				zap.String("user_id", userID),
				zap.Error(err))
			return false
		}
		for _, item := range page.Items {
			if strAttr(item, attrRecordType) != recordConversation {
				continue
			}
			if propertyID != "" && strAttr(item, attrPropertyID) != propertyID {
				continue
			}
			pk := strAttr(item, repository.PartitionKey)
			sk := strAttr(item, repository.SortKey)
			if err := s.table.Update(ctx, pk, sk, feedbackOps(feedback, s.nowRFC3339())); err != nil {
				s.log.Warn("failed to attach feedback to latest conversation",
					zap.String("user_id", userID),
					zap.Error(err))
				return false
			}
			return true
		}
		if page.NextToken == "" {
			return false
		}
		pageToken = page.NextToken
	}
}

// feedbackOps writes the rating fields only. A later merge replaces an
// earlier one wholesale; there is no append history for feedback.
func feedbackOps(feedback domain.Feedback, now string) []repository.UpdateOp {
	return []repository.UpdateOp{
		repository.Set(attrFeedback, feedbackAttr(feedback)),
		repository.Set(attrLastUpdateTime, sv(now)),
	}
}
