package domain

// TimelineEvent is one entry in a voice session's ordered event timeline.
type TimelineEvent struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	Warning   string         `json:"warning,omitempty"`
}

// TranscriptEntry is one utterance in a voice session's ordered transcript.
type TranscriptEntry struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// VoiceDiagnosticsSession is the per-(property, session) diagnostics record
// for a voice call: timeline events, quality metrics, configuration,
// transcripts, errors and warnings, and a derived lifecycle status.
//
// Once EndTime is set the session is terminal and is never reopened.
// DurationSeconds, when present, equals EndTime minus StartTime in whole
// seconds.
type VoiceDiagnosticsSession struct {
	PropertyID           string            `json:"propertyId"`
	SessionID            string            `json:"sessionId"`
	OwnerUserID          string            `json:"ownerUserId,omitempty"`
	GuestName            string            `json:"guestName,omitempty"`
	ReservationID        string            `json:"reservationId,omitempty"`
	StartTime            string            `json:"startTime"`
	EndTime              string            `json:"endTime,omitempty"`
	DurationSeconds      *int64            `json:"durationSeconds,omitempty"`
	Status               string            `json:"status"`
	Channel              string            `json:"channel"`
	ClientDiagnostics    map[string]any    `json:"clientDiagnostics,omitempty"`
	NetworkQuality       map[string]any    `json:"networkQuality,omitempty"`
	QualityMetrics       map[string]any    `json:"qualityMetrics,omitempty"`
	EventTimeline        []TimelineEvent   `json:"eventTimeline"`
	Errors               []string          `json:"errors,omitempty"`
	Warnings             []string          `json:"warnings,omitempty"`
	TechnicalConfig      map[string]any    `json:"technicalConfig,omitempty"`
	Transcripts          []TranscriptEntry `json:"transcripts,omitempty"`
	InitializationErrors []string          `json:"initializationErrors,omitempty"`
	Feedback             *Feedback         `json:"feedback,omitempty"`
	Summary              string            `json:"summary,omitempty"`

	// Note carries the provenance explanation on minimal fallback records.
	Note string `json:"note,omitempty"`
}

// EndReason sets recognised by Finalize when deciding the terminal status.
var (
	SuccessEndReasons = map[string]bool{
		"normal":         true,
		"user_ended":     true,
		"completed":      true,
		"call_completed": true,
	}
	FailureEndReasons = map[string]bool{
		"error":            true,
		"failed":           true,
		"connection_error": true,
		"timeout":          true,
	}
)
