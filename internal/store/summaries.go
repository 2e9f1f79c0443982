package store

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// UpdateSessionFields merges arbitrary fields onto a voice session record,
// resolving its location first. Used by summary write-back.
func (s *Store) UpdateSessionFields(ctx context.Context, sessionID string, fields map[string]any) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	if len(fields) == 0 {
		return newError(ErrorInvalidInput, "no_fields", nil)
	}
	key, found := s.resolve(ctx, sessionID)
	if !found {
		return newError(ErrorNotFound, "session_not_found", nil)
	}

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
		s.log.Error("failed to update session fields",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return newError(ErrorStorage, "update_session_fields_failed", err)
	}
	return nil
}

// SummaryTarget identifies one record missing a generated summary.
type SummaryTarget struct {
	PropertyID     string
	ConversationID string
	SessionID      string
}

// IsSession reports whether the target is a voice session rather than a
// conversation.
func (t SummaryTarget) IsSession() bool {
	return t.SessionID != ""
}

// ScanMissingSummaries finds conversation and voice records lacking a
// summary attribute. The scan is bounded by the table's scan limit; the
// batch job runs repeatedly, so each invocation working one bounded chunk
// is enough.
func (s *Store) ScanMissingSummaries(ctx context.Context) ([]SummaryTarget, error) {
	var targets []SummaryTarget

	convItems, err := s.table.ScanMissing(ctx, domain.SKPrefixConversation, attrSummary)
	if err != nil {
		return nil, newError(ErrorStorage, "scan_conversations_failed", err)
	}
	for _, item := range convItems {
		targets = append(targets, SummaryTarget{
			PropertyID:     strAttr(item, attrPropertyID),
			ConversationID: strAttr(item, attrConversationID),
		})
	}

	voiceItems, err := s.table.ScanMissing(ctx, domain.SKPrefixVoice, attrSummary)
	if err != nil {
		return nil, newError(ErrorStorage, "scan_sessions_failed", err)
	}
	for _, item := range voiceItems {
		targets = append(targets, SummaryTarget{
			PropertyID: strAttr(item, attrPropertyID),
			SessionID:  strAttr(item, attrSessionID),
		})
	}
	return targets, nil
}
