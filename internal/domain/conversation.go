package domain

// Channel identifies how a guest reached the assistant.
const (
	ChannelTextChat  = "text_chat"
	ChannelVoiceCall = "voice_call"
)

// Message is a single entry in a conversation's ordered message log.
// Timestamps are RFC3339 strings and are non-decreasing in append order.
type Message struct {
	Role        string `json:"role"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ContextUsed string `json:"contextUsed,omitempty"`
}

// ConversationSession is the per-(property, conversation) message log with
// running counters. Status is derived on read, never stored at creation.
type ConversationSession struct {
	PropertyID     string    `json:"propertyId"`
	ConversationID string    `json:"conversationId"`
	OwnerUserID    string    `json:"ownerUserId"`
	GuestName      string    `json:"guestName"`
	ReservationID  string    `json:"reservationId,omitempty"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	Channel        string    `json:"channel"`
	CreatedAt      string    `json:"createdAt"`
	LastUpdateTime string    `json:"lastUpdateTime"`
	Status         string    `json:"status"`
	MessageCount   int       `json:"messageCount"`
	Messages       []Message `json:"messages"`
	Summary        string    `json:"summary,omitempty"`
	Feedback       *Feedback `json:"feedback,omitempty"`
}

// SessionPointer is the durable indirection record mapping a logical session
// identifier to its current physical address. It is rewritten whenever the
// target record's address changes, so a written pointer always resolves.
type SessionPointer struct {
	SessionID      string `json:"sessionId"`
	TargetPK       string `json:"targetPk"`
	TargetSK       string `json:"targetSk"`
	CreatedAt      string `json:"createdAt"`
	LastUpdateTime string `json:"lastUpdateTime"`
}

// Feedback is a guest rating merged onto a session or conversation record.
// Enjoyment is bounded 0-3, accuracy 1-5.
type Feedback struct {
	Enjoyment   int    `json:"enjoyment"`
	Accuracy    int    `json:"accuracy"`
	FeedbackID  string `json:"feedbackId"`
	SubmittedAt string `json:"submittedAt"`
}
