package store

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// Defaults applied when a message arrives before its conversation's
// creation call has completed.
const (
	defaultOwnerUserID = "unknown"
	defaultGuestName   = "Guest"
)

// CreateConversationInput carries the caller-supplied fields of a new
// conversation record.
type CreateConversationInput struct {
	PropertyID    string
	OwnerUserID   string
	GuestName     string
	ReservationID string
	PhoneNumber   string
	Channel       string
}

// CreateConversation allocates a conversation id and writes the initial
// record with an empty message list. Status is derived on read, never
// stored at creation.
func (s *Store) CreateConversation(ctx context.Context, in CreateConversationInput) (string, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return "", newError(ErrorInvalidInput, "missing_property_id", nil)
	}
	if strings.TrimSpace(in.OwnerUserID) == "" {
		return "", newError(ErrorInvalidInput, "missing_owner_user_id", nil)
	}
	channel := in.Channel
	if channel == "" {
		channel = domain.ChannelTextChat
	}
	guestName := in.GuestName
	if guestName == "" {
		guestName = defaultGuestName
	}

	conversationID := newUUID()
	key := domain.ConversationKey(in.PropertyID, conversationID)
	now := s.nowRFC3339()

	item := repository.Item{
		repository.PartitionKey: sv(key.PK),
		repository.SortKey:      sv(key.SK),
		attrRecordType:          sv(recordConversation),
		attrPropertyID:          sv(in.PropertyID),
		attrConversationID:      sv(conversationID),
		attrOwnerUserID:         sv(in.OwnerUserID),
		attrGuestName:           sv(guestName),
		attrChannel:             sv(channel),
		attrCreatedAt:           sv(now),
		attrLastUpdateTime:      sv(now),
		attrMessageCount:        nv(0),
		attrMessages:            emptyList(),
	}
	if in.ReservationID != "" {
		item[attrReservationID] = sv(in.ReservationID)
	}
	if in.PhoneNumber != "" {
		item[attrPhoneNumber] = sv(in.PhoneNumber)
	}

	if err := s.table.Put(ctx, item); err != nil {
		s.log.Error("failed to create conversation",
			zap.String("property_id", in.PropertyID),
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return "", newError(ErrorStorage, "create_conversation_failed", err)
	}
	return conversationID, nil
}

// AppendMessage appends msg to the conversation's ordered message list,
// increments the running count, and refreshes the update time. The update
// is self-healing: when the record does not exist yet (the message raced
// ahead of the creation call) it is created with default owner and guest
// fields, so out-of-order delivery never silently fails.
func (s *Store) AppendMessage(ctx context.Context, propertyID, conversationID string, msg domain.Message) error {
	if strings.TrimSpace(propertyID) == "" || strings.TrimSpace(conversationID) == "" {
		return newError(ErrorInvalidInput, "missing_conversation_key", nil)
	}
	if msg.Timestamp == "" {
		msg.Timestamp = s.nowRFC3339()
	}
	key := domain.ConversationKey(propertyID, conversationID)
	now := s.nowRFC3339()

	ops := []repository.UpdateOp{
		repository.Append(attrMessages, messageElem(msg)),
		repository.Add(attrMessageCount, 1),
		repository.Set(attrLastUpdateTime, sv(now)),
		repository.SetIfAbsent(attrRecordType, sv(recordConversation)),
		repository.SetIfAbsent(attrPropertyID, sv(propertyID)),
		repository.SetIfAbsent(attrConversationID, sv(conversationID)),
		repository.SetIfAbsent(attrOwnerUserID, sv(defaultOwnerUserID)),
		repository.SetIfAbsent(attrGuestName, sv(defaultGuestName)),
		repository.SetIfAbsent(attrChannel, sv(domain.ChannelTextChat)),
		repository.SetIfAbsent(attrCreatedAt, sv(now)),
	}
	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to append message",
			zap.String("property_id", propertyID),
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return newError(ErrorStorage, "append_message_failed", err)
	}
	return nil
}

// GetConversation reads a conversation record. Absence is a NOT_FOUND
// error, not a fallback path; reads have nothing to heal.
func (s *Store) GetConversation(ctx context.Context, propertyID, conversationID string) (*domain.ConversationSession, error) {
	if strings.TrimSpace(propertyID) == "" || strings.TrimSpace(conversationID) == "" {
		return nil, newError(ErrorInvalidInput, "missing_conversation_key", nil)
	}
	key := domain.ConversationKey(propertyID, conversationID)
	item, err := s.table.Get(ctx, key.PK, key.SK)
	if err != nil {
		return nil, newError(ErrorStorage, "get_conversation_failed", err)
	}
	if item == nil {
		return nil, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	conv := conversationFromItem(item)
	return &conv, nil
}

// UpdateConversation merges arbitrary fields onto a conversation record.
// Used by summary write-back, feedback attachment, and status correction.
func (s *Store) UpdateConversation(ctx context.Context, propertyID, conversationID string, fields map[string]any) error {
	if strings.TrimSpace(propertyID) == "" || strings.TrimSpace(conversationID) == "" {
		return newError(ErrorInvalidInput, "missing_conversation_key", nil)
	}
	if len(fields) == 0 {
		return newError(ErrorInvalidInput, "no_fields", nil)
	}
	key := domain.ConversationKey(propertyID, conversationID)

	// Deterministic op order keeps update expressions stable for tests and logs.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]repository.UpdateOp, 0, len(fields)+1)
	for _, name := range names {
		ops = append(ops, repository.Set(name, anyToAttr(fields[name])))
	}
	ops = append(ops, repository.Set(attrLastUpdateTime, sv(s.nowRFC3339())))

	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to update conversation",
			zap.String("property_id", propertyID),
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return newError(ErrorStorage, "update_conversation_failed", err)
	}
	return nil
}

// ListConversations returns one page of a property's conversations.
func (s *Store) ListConversations(ctx context.Context, propertyID, pageToken string) ([]domain.ConversationSession, string, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, "", newError(ErrorInvalidInput, "missing_property_id", nil)
	}
	page, err := s.table.QueryPrefix(ctx, domain.PropertyPK(propertyID), domain.SKPrefixConversation, pageToken)
	if err != nil {
		return nil, "", newError(ErrorStorage, "list_conversations_failed", err)
	}
	out := make([]domain.ConversationSession, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, conversationFromItem(item))
	}
	return out, page.NextToken, nil
}
