package domain

import "time"

// Sort-key prefixes for the single-table layout. Conversation and voice
// diagnostics records share a property partition; pointer and fallback
// records live in a per-session partition.
const (
	SKPrefixConversation = "CONVERSATION#"
	SKPrefixVoice        = "VOICE_DIAGNOSTICS#"
	SKPrefixFallback     = "FALLBACK#"
	SKPointer            = "POINTER"
)

// ItemKey is the two-part physical address of a stored item.
type ItemKey struct {
	PK string
	SK string
}

// PropertyPK returns the partition key shared by all records of a property.
func PropertyPK(propertyID string) string {
	return "PROPERTY#" + propertyID
}

// SessionPK returns the partition key of a session's pointer and fallback records.
func SessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// ConversationSK returns the sort key of a conversation record.
func ConversationSK(conversationID string) string {
	return SKPrefixConversation + conversationID
}

// VoiceSK returns the sort key of a voice diagnostics record.
func VoiceSK(sessionID string) string {
	return SKPrefixVoice + sessionID
}

// FallbackSK returns the timestamp-suffixed sort key of a minimal fallback
// record. Nanosecond precision keeps concurrent fallback creations from
// colliding on the same key.
func FallbackSK(ts time.Time) string {
	return SKPrefixFallback + ts.UTC().Format(time.RFC3339Nano)
}

// ConversationKey returns the full address of a conversation record.
func ConversationKey(propertyID, conversationID string) ItemKey {
	return ItemKey{PK: PropertyPK(propertyID), SK: ConversationSK(conversationID)}
}

// VoiceKey returns the full address of a voice diagnostics record.
func VoiceKey(propertyID, sessionID string) ItemKey {
	return ItemKey{PK: PropertyPK(propertyID), SK: VoiceSK(sessionID)}
}

// PointerKey returns the address of a session's durable pointer record.
func PointerKey(sessionID string) ItemKey {
	return ItemKey{PK: SessionPK(sessionID), SK: SKPointer}
}
