package store

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// Stored attribute names. Conversation and voice records share the property
// partition, so the names are disjoint where shapes differ.
const (
	attrRecordType     = "record_type"
	attrPropertyID     = "property_id"
	attrConversationID = "conversation_id"
	attrSessionID      = "session_id"
	attrOwnerUserID    = repository.OwnerAttr
	attrGuestName      = "guest_name"
	attrReservationID  = "reservation_id"
	attrPhoneNumber    = "phone_number"
	attrChannel        = "channel"
	attrCreatedAt      = "created_at"
	attrLastUpdateTime = "last_update_time"
	attrStatus         = "status"
	attrMessageCount   = "message_count"
	attrMessages       = "messages"
	attrSummary        = "summary"
	attrStartTime      = "start_time"
	attrEndTime        = "end_time"
	attrDuration       = "duration_seconds"
	attrClientDiag     = "client_diagnostics"
	attrNetworkQuality = "network_quality"
	attrQualityMetrics = "quality_metrics"
	attrEventTimeline  = "event_timeline"
	attrErrors         = "errors"
	attrWarnings       = "warnings"
	attrTechConfig     = "technical_config"
	attrTranscripts    = "transcripts"
	attrInitErrors     = "initialization_errors"
	attrFeedback       = "feedback"
	attrNote           = "note"
	attrTargetPK       = "target_pk"
	attrTargetSK       = "target_sk"
)

// Record type discriminator values.
const (
	recordConversation = "conversation"
	recordVoice        = "voice_diagnostics"
	recordPointer      = "session_pointer"
	recordFallback     = "voice_fallback"
)

func sv(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func nv(v int64) types.AttributeValue  { return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)} }
func emptyList() types.AttributeValue  { return &types.AttributeValueMemberL{Value: []types.AttributeValue{}} }
func emptyMap() types.AttributeValue   { return &types.AttributeValueMemberM{Value: repository.Item{}} }

func strAttr(item repository.Item, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func intAttr(item repository.Item, key string) int {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		parsed, err := strconv.Atoi(v.Value)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func int64PtrAttr(item repository.Item, key string) *int64 {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		parsed, err := strconv.ParseInt(v.Value, 10, 64)
		if err == nil {
			return &parsed
		}
	}
	return nil
}

func listAttr(item repository.Item, key string) []types.AttributeValue {
	if v, ok := item[key].(*types.AttributeValueMemberL); ok {
		return v.Value
	}
	return nil
}

func mapAttr(item repository.Item, key string) repository.Item {
	if v, ok := item[key].(*types.AttributeValueMemberM); ok {
		return v.Value
	}
	return nil
}

// anyToAttr converts a schemaless Go value to its DynamoDB representation.
// Numbers collapse to N, which loses Go-side integer/float distinction; the
// store round-trips them as float64 like any other document codec.
func anyToAttr(v any) types.AttributeValue {
	switch val := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}
	case string:
		return sv(val)
	case bool:
		return &types.AttributeValueMemberBOOL{Value: val}
	case int:
		return nv(int64(val))
	case int64:
		return nv(val)
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(val, 'f', -1, 64)}
	case []any:
		elems := make([]types.AttributeValue, len(val))
		for i, e := range val {
			elems[i] = anyToAttr(e)
		}
		return &types.AttributeValueMemberL{Value: elems}
	case map[string]any:
		m := make(repository.Item, len(val))
		for k, e := range val {
			m[k] = anyToAttr(e)
		}
		return &types.AttributeValueMemberM{Value: m}
	default:
		return sv(fmt.Sprintf("%v", val))
	}
}

func attrToAny(av types.AttributeValue) any {
	switch val := av.(type) {
	case *types.AttributeValueMemberS:
		return val.Value
	case *types.AttributeValueMemberBOOL:
		return val.Value
	case *types.AttributeValueMemberN:
		parsed, err := strconv.ParseFloat(val.Value, 64)
		if err != nil {
			return val.Value
		}
		return parsed
	case *types.AttributeValueMemberL:
		elems := make([]any, len(val.Value))
		for i, e := range val.Value {
			elems[i] = attrToAny(e)
		}
		return elems
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(val.Value))
		for k, e := range val.Value {
			m[k] = attrToAny(e)
		}
		return m
	default:
		return nil
	}
}

func anyMapAttr(item repository.Item, key string) map[string]any {
	raw := mapAttr(item, key)
	if raw == nil {
		return nil
	}
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		m[k] = attrToAny(v)
	}
	return m
}

func stringListAttr(item repository.Item, key string) []string {
	raw := listAttr(item, key)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if v, ok := e.(*types.AttributeValueMemberS); ok {
			out = append(out, v.Value)
		}
	}
	return out
}

func stringListElems(values []string) []types.AttributeValue {
	elems := make([]types.AttributeValue, len(values))
	for i, v := range values {
		elems[i] = sv(v)
	}
	return elems
}

func messageElem(msg domain.Message) types.AttributeValue {
	m := repository.Item{
		"role":      sv(msg.Role),
		"text":      sv(msg.Text),
		"timestamp": sv(msg.Timestamp),
	}
	if msg.PhoneNumber != "" {
		m[attrPhoneNumber] = sv(msg.PhoneNumber)
	}
	if msg.ContextUsed != "" {
		m["context_used"] = sv(msg.ContextUsed)
	}
	return &types.AttributeValueMemberM{Value: m}
}

func messageFromAttr(av types.AttributeValue) domain.Message {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return domain.Message{}
	}
	return domain.Message{
		Role:        strAttr(m.Value, "role"),
		Text:        strAttr(m.Value, "text"),
		Timestamp:   strAttr(m.Value, "timestamp"),
		PhoneNumber: strAttr(m.Value, attrPhoneNumber),
		ContextUsed: strAttr(m.Value, "context_used"),
	}
}

func eventElem(ev domain.TimelineEvent) types.AttributeValue {
	m := repository.Item{
		"type":      sv(ev.Type),
		"timestamp": sv(ev.Timestamp),
	}
	if len(ev.Details) > 0 {
		m["details"] = anyToAttr(ev.Details)
	}
	if ev.Error != "" {
		m["error"] = sv(ev.Error)
	}
	if ev.Warning != "" {
		m["warning"] = sv(ev.Warning)
	}
	return &types.AttributeValueMemberM{Value: m}
}

func eventFromAttr(av types.AttributeValue) domain.TimelineEvent {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return domain.TimelineEvent{}
	}
	ev := domain.TimelineEvent{
		Type:      strAttr(m.Value, "type"),
		Timestamp: strAttr(m.Value, "timestamp"),
		Error:     strAttr(m.Value, "error"),
		Warning:   strAttr(m.Value, "warning"),
	}
	if details, ok := attrToAny(m.Value["details"]).(map[string]any); ok {
		ev.Details = details
	}
	return ev
}

func transcriptElem(entry domain.TranscriptEntry) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: repository.Item{
		"role":      sv(entry.Role),
		"text":      sv(entry.Text),
		"timestamp": sv(entry.Timestamp),
	}}
}

func transcriptFromAttr(av types.AttributeValue) domain.TranscriptEntry {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return domain.TranscriptEntry{}
	}
	return domain.TranscriptEntry{
		Role:      strAttr(m.Value, "role"),
		Text:      strAttr(m.Value, "text"),
		Timestamp: strAttr(m.Value, "timestamp"),
	}
}

func feedbackAttr(fb domain.Feedback) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: repository.Item{
		"enjoyment":    nv(int64(fb.Enjoyment)),
		"accuracy":     nv(int64(fb.Accuracy)),
		"feedback_id":  sv(fb.FeedbackID),
		"submitted_at": sv(fb.SubmittedAt),
	}}
}

func feedbackFromAttr(av types.AttributeValue) *domain.Feedback {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	return &domain.Feedback{
		Enjoyment:   intAttr(m.Value, "enjoyment"),
		Accuracy:    intAttr(m.Value, "accuracy"),
		FeedbackID:  strAttr(m.Value, "feedback_id"),
		SubmittedAt: strAttr(m.Value, "submitted_at"),
	}
}

func conversationFromItem(item repository.Item) domain.ConversationSession {
	conv := domain.ConversationSession{
		PropertyID:     strAttr(item, attrPropertyID),
		ConversationID: strAttr(item, attrConversationID),
		OwnerUserID:    strAttr(item, attrOwnerUserID),
		GuestName:      strAttr(item, attrGuestName),
		ReservationID:  strAttr(item, attrReservationID),
		PhoneNumber:    strAttr(item, attrPhoneNumber),
		Channel:        strAttr(item, attrChannel),
		CreatedAt:      strAttr(item, attrCreatedAt),
		LastUpdateTime: strAttr(item, attrLastUpdateTime),
		Status:         domain.DeriveConversationStatus(strAttr(item, attrStatus)),
		MessageCount:   intAttr(item, attrMessageCount),
		Summary:        strAttr(item, attrSummary),
	}
	for _, raw := range listAttr(item, attrMessages) {
		conv.Messages = append(conv.Messages, messageFromAttr(raw))
	}
	if fb, ok := item[attrFeedback]; ok {
		conv.Feedback = feedbackFromAttr(fb)
	}
	return conv
}

func voiceFromItem(item repository.Item) domain.VoiceDiagnosticsSession {
	sess := domain.VoiceDiagnosticsSession{
		PropertyID:           strAttr(item, attrPropertyID),
		SessionID:            strAttr(item, attrSessionID),
		OwnerUserID:          strAttr(item, attrOwnerUserID),
		GuestName:            strAttr(item, attrGuestName),
		ReservationID:        strAttr(item, attrReservationID),
		StartTime:            strAttr(item, attrStartTime),
		EndTime:              strAttr(item, attrEndTime),
		DurationSeconds:      int64PtrAttr(item, attrDuration),
		Status:               strAttr(item, attrStatus),
		Channel:              strAttr(item, attrChannel),
		ClientDiagnostics:    anyMapAttr(item, attrClientDiag),
		NetworkQuality:       anyMapAttr(item, attrNetworkQuality),
		QualityMetrics:       anyMapAttr(item, attrQualityMetrics),
		TechnicalConfig:      anyMapAttr(item, attrTechConfig),
		Errors:               stringListAttr(item, attrErrors),
		Warnings:             stringListAttr(item, attrWarnings),
		InitializationErrors: stringListAttr(item, attrInitErrors),
		Summary:              strAttr(item, attrSummary),
		Note:                 strAttr(item, attrNote),
	}
	for _, raw := range listAttr(item, attrEventTimeline) {
		sess.EventTimeline = append(sess.EventTimeline, eventFromAttr(raw))
	}
	for _, raw := range listAttr(item, attrTranscripts) {
		sess.Transcripts = append(sess.Transcripts, transcriptFromAttr(raw))
	}
	if fb, ok := item[attrFeedback]; ok {
		sess.Feedback = feedbackFromAttr(fb)
	}
	return sess
}

func pointerFromItem(item repository.Item) domain.SessionPointer {
	return domain.SessionPointer{
		SessionID:      strAttr(item, attrSessionID),
		TargetPK:       strAttr(item, attrTargetPK),
		TargetSK:       strAttr(item, attrTargetSK),
		CreatedAt:      strAttr(item, attrCreatedAt),
		LastUpdateTime: strAttr(item, attrLastUpdateTime),
	}
}
