package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// CreateSessionInput carries the caller-supplied fields of a new voice
// diagnostics session.
type CreateSessionInput struct {
	PropertyID    string
	SessionID     string
	OwnerUserID   string
	GuestName     string
	ReservationID string
}

// CreateSession writes the full record skeleton for a new voice call in
// INITIALIZING state and registers the session in the cache and pointer
// store. When no session id is supplied one is allocated.
func (s *Store) CreateSession(ctx context.Context, in CreateSessionInput) (string, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return "", newError(ErrorInvalidInput, "missing_property_id", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	key := domain.VoiceKey(in.PropertyID, sessionID)

	item := s.sessionSkeleton(in, sessionID, key)
	item[attrStatus] = sv(domain.StatusInitializing)

	created, err := s.table.PutIfAbsent(ctx, item)
	if err != nil {
		s.log.Error("failed to create voice session",
			zap.String("property_id", in.PropertyID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", newError(ErrorStorage, "create_session_failed", err)
	}
	if !created {
		// A record with this id already holds diagnostics data; creating
		// again must not wipe it.
		s.log.Info("voice session already exists",
			zap.String("session_id", sessionID))
	}
	s.recordLocation(ctx, sessionID, key)
	return sessionID, nil
}

// CreateFallbackSession writes a session record in FALLBACK_MODE when
// normal creation cannot proceed, recording the initialization errors and
// an explanatory warning event.
func (s *Store) CreateFallbackSession(ctx context.Context, in CreateSessionInput, initErrors []string) (string, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return "", newError(ErrorInvalidInput, "missing_property_id", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	key := domain.VoiceKey(in.PropertyID, sessionID)
	now := s.nowRFC3339()

	warning := domain.TimelineEvent{
		Type:      "FALLBACK_MODE_ENTERED",
		Timestamp: now,
		Warning:   "session created in fallback mode: upstream initialization failed",
	}

	item := s.sessionSkeleton(in, sessionID, key)
	item[attrStatus] = sv(domain.StatusFallbackMode)
	item[attrInitErrors] = &types.AttributeValueMemberL{Value: stringListElems(initErrors)}
	item[attrEventTimeline] = &types.AttributeValueMemberL{Value: []types.AttributeValue{eventElem(warning)}}
	item[attrWarnings] = &types.AttributeValueMemberL{Value: stringListElems([]string{warning.Warning})}

	if _, err := s.table.PutIfAbsent(ctx, item); err != nil {
		s.log.Error("failed to create fallback session",
			zap.String("property_id", in.PropertyID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", newError(ErrorStorage, "create_fallback_session_failed", err)
	}
	s.recordLocation(ctx, sessionID, key)
	return sessionID, nil
}

func (s *Store) sessionSkeleton(in CreateSessionInput, sessionID string, key domain.ItemKey) repository.Item {
	now := s.nowRFC3339()
	item := repository.Item{
		repository.PartitionKey: sv(key.PK),
		repository.SortKey:      sv(key.SK),
		attrRecordType:          sv(recordVoice),
		attrPropertyID:          sv(in.PropertyID),
		attrSessionID:           sv(sessionID),
		attrChannel:             sv(domain.ChannelVoiceCall),
		attrStartTime:           sv(now),
		attrCreatedAt:           sv(now),
		attrLastUpdateTime:      sv(now),
		attrClientDiag:          emptyMap(),
		attrNetworkQuality:      emptyMap(),
		attrQualityMetrics:      emptyMap(),
		attrTechConfig:          emptyMap(),
		attrEventTimeline:       emptyList(),
		attrErrors:              emptyList(),
		attrWarnings:            emptyList(),
		attrTranscripts:         emptyList(),
	}
	if in.OwnerUserID != "" {
		item[attrOwnerUserID] = sv(in.OwnerUserID)
	}
	if in.GuestName != "" {
		item[attrGuestName] = sv(in.GuestName)
	}
	if in.ReservationID != "" {
		item[attrReservationID] = sv(in.ReservationID)
	}
	return item
}

// LogEvent appends an event to the session's timeline, mirroring any error
// or warning text into the respective lists, and advances the lifecycle
// status when the event type demands it. A session that cannot be resolved
// gets a minimal fallback record holding the event instead: no event is
// ever silently dropped.
func (s *Store) LogEvent(ctx context.Context, sessionID, eventType string, details map[string]any, errMsg, warnMsg string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(eventType) == "" {
		return newError(ErrorInvalidInput, "missing_event_key", nil)
	}
	event := domain.TimelineEvent{
		Type:      eventType,
		Timestamp: s.nowRFC3339(),
		Details:   details,
		Error:     errMsg,
		Warning:   warnMsg,
	}

	key, item, ok := s.resolveWithItem(ctx, sessionID)
	if !ok {
		_, err := s.createFallbackRecord(ctx, sessionID, fallbackSeed{event: &event})
		return err
	}

	ops := []repository.UpdateOp{
		repository.Append(attrEventTimeline, eventElem(event)),
		repository.Set(attrLastUpdateTime, sv(event.Timestamp)),
	}
	if errMsg != "" {
		ops = append(ops, repository.Append(attrErrors, sv(errMsg)))
	}
	if warnMsg != "" {
		ops = append(ops, repository.Append(attrWarnings, sv(warnMsg)))
	}

	currentStatus := strAttr(item, attrStatus)
	hasEnded := strAttr(item, attrEndTime) != ""
	onFallbackTrack := currentStatus == domain.StatusFallbackMode || currentStatus == domain.StatusUnknown
	nextStatus, endsCall := domain.TransitionForEvent(eventType)
	if nextStatus != "" && !domain.IsTerminal(currentStatus) {
		switch {
		case !endsCall && hasEnded:
			// endTime is set: the session is closed and must not reactivate.
			// Late events still land on the timeline above.
		case !endsCall && onFallbackTrack:
			// Fallback-origin records stay on the fallback track so an
			// ending event resolves them to FALLBACK_COMPLETED.
		default:
			if endsCall && onFallbackTrack {
				nextStatus = domain.StatusFallbackCompleted
			}
			ops = append(ops, repository.Set(attrStatus, sv(nextStatus)))
		}
	}
	if endsCall && !hasEnded {
		ops = append(ops, repository.Set(attrEndTime, sv(event.Timestamp)))
	}

	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to log session event",
			zap.String("session_id", sessionID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return newError(ErrorStorage, "log_event_failed", err)
	}
	return nil
}

// UpdateMetrics merges a metrics delta onto the session. Scalar values are
// set; array values are appended. Metrics are best-effort telemetry: a
// session that cannot be resolved is logged and the call returns without
// error.
func (s *Store) UpdateMetrics(ctx context.Context, sessionID string, delta map[string]any) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	if len(delta) == 0 {
		return nil
	}
	key, found := s.resolve(ctx, sessionID)
	if !found {
		s.log.Warn("dropping metrics for unresolved session",
			zap.String("session_id", sessionID))
		return nil
	}

	ops := metricsOps(delta)
	ops = append(ops, repository.Set(attrLastUpdateTime, sv(s.nowRFC3339())))
	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Warn("failed to update session metrics",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	return nil
}

// metricsOps converts a metrics delta into update operations. Top-level
// diagnostics maps replace wholesale; everything else lands under
// quality_metrics, with slices appended rather than overwritten.
func metricsOps(delta map[string]any) []repository.UpdateOp {
	names := make([]string, 0, len(delta))
	for name := range delta {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]repository.UpdateOp, 0, len(names))
	for _, name := range names {
		value := delta[name]
		switch name {
		case attrClientDiag, attrNetworkQuality:
			ops = append(ops, repository.Set(name, anyToAttr(value)))
			continue
		}
		path := attrQualityMetrics + "." + name
		if slice, ok := value.([]any); ok {
			elems := make([]types.AttributeValue, len(slice))
			for i, e := range slice {
				elems[i] = anyToAttr(e)
			}
			ops = append(ops, repository.Append(path, elems...))
			continue
		}
		ops = append(ops, repository.Set(path, anyToAttr(value)))
	}
	return ops
}

// UpdateConfig merges a configuration delta onto the session's technical
// config. Configuration writes must never be lost: resolution cascades from
// the pointer and cache through the diagnostics scan to the fallback
// partition, and as an absolute last resort a new minimal record is created
// to receive the config.
func (s *Store) UpdateConfig(ctx context.Context, sessionID string, configDelta map[string]any) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	if len(configDelta) == 0 {
		return nil
	}

	key, found := s.resolve(ctx, sessionID)
	if !found {
		fb := &fallbackScanResolver{table: s.table}
		fbKey, fbFound, err := fb.resolve(ctx, sessionID)
		if err != nil {
			s.log.Warn("fallback scan failed during config update",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		if fbFound {
			key, found = fbKey, true
			s.recordLocation(ctx, sessionID, key)
		}
	}
	if !found {
		created, err := s.createFallbackRecord(ctx, sessionID, fallbackSeed{
			note: "record created to receive configuration for an unresolved session",
		})
		if err != nil {
			return err
		}
		key = created
	}

	names := make([]string, 0, len(configDelta))
	for name := range configDelta {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]repository.UpdateOp, 0, len(names)+1)
	for _, name := range names {
		ops = append(ops, repository.Set(attrTechConfig+"."+name, anyToAttr(configDelta[name])))
	}
	ops = append(ops, repository.Set(attrLastUpdateTime, sv(s.nowRFC3339())))

	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to update session config",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return newError(ErrorStorage, "update_config_failed", err)
	}
	return nil
}

// Finalize closes a session: it sets the end time, derives the duration
// when the start time is known, records a SESSION_FINALIZED event, applies
// any final metrics, and decides the terminal status from the end reason
// and reported error count. Summary generation fires as a detached side
// effect. Finalizing an already-terminal session is a no-op, which makes
// the terminal fields idempotent.
func (s *Store) Finalize(ctx context.Context, sessionID, endReason string, finalMetrics map[string]any) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}

	key, item, ok := s.resolveWithItem(ctx, sessionID)
	if !ok {
		event := domain.TimelineEvent{
			Type:      domain.EventSessionFinalized,
			Timestamp: s.nowRFC3339(),
			Details:   map[string]any{"end_reason": endReason},
		}
		_, err := s.createFallbackRecord(ctx, sessionID, fallbackSeed{event: &event})
		return err
	}

	currentStatus := strAttr(item, attrStatus)
	if domain.IsTerminal(currentStatus) && strAttr(item, attrEndTime) != "" {
		s.log.Info("session already finalized",
			zap.String("session_id", sessionID),
			zap.String("status", currentStatus))
		return nil
	}

	now := s.now()
	endTime := now.Format(time.RFC3339)
	finalStatus := domain.FinalStatus(endReason, totalErrorsFrom(finalMetrics))
	if currentStatus == domain.StatusFallbackMode || currentStatus == domain.StatusUnknown {
		finalStatus = domain.StatusFallbackCompleted
	}

	event := domain.TimelineEvent{
		Type:      domain.EventSessionFinalized,
		Timestamp: endTime,
		Details:   map[string]any{"end_reason": endReason, "final_status": finalStatus},
	}

	ops := []repository.UpdateOp{
		repository.Set(attrStatus, sv(finalStatus)),
		repository.Set(attrEndTime, sv(endTime)),
		repository.Append(attrEventTimeline, eventElem(event)),
		repository.Set(attrLastUpdateTime, sv(endTime)),
	}
	if startTime, err := time.Parse(time.RFC3339, strAttr(item, attrStartTime)); err == nil {
		duration := int64(now.Sub(startTime) / time.Second)
		if duration < 0 {
			duration = 0
		}
		ops = append(ops, repository.Set(attrDuration, nv(duration)))
	}
	if len(finalMetrics) > 0 {
		ops = append(ops, metricsOps(finalMetrics)...)
	}

	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to finalize session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return newError(ErrorStorage, "finalize_failed", err)
	}

	s.summaries.TriggerSession(strAttr(item, attrPropertyID), sessionID)
	return nil
}

// ForceFinalize unconditionally marks a session COMPLETED with an end time
// and duration, bypassing the end-reason heuristics. Used when the caller
// needs a guaranteed terminal state regardless of session quality.
func (s *Store) ForceFinalize(ctx context.Context, sessionID, endReason string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}

	key, item, ok := s.resolveWithItem(ctx, sessionID)
	if !ok {
		created, err := s.createFallbackRecord(ctx, sessionID, fallbackSeed{
			note: "record created by forced finalization of an unresolved session",
		})
		if err != nil {
			return err
		}
		key = created
		item = repository.Item{}
	}

	now := s.now()
	endTime := now.Format(time.RFC3339)
	ops := []repository.UpdateOp{
		repository.Set(attrStatus, sv(domain.StatusCompleted)),
		repository.Set(attrEndTime, sv(endTime)),
		repository.Set(attrLastUpdateTime, sv(endTime)),
	}
	if startTime, err := time.Parse(time.RFC3339, strAttr(item, attrStartTime)); err == nil {
		duration := int64(now.Sub(startTime) / time.Second)
		if duration < 0 {
			duration = 0
		}
		ops = append(ops, repository.Set(attrDuration, nv(duration)))
	}

	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to force-finalize session",
			zap.String("session_id", sessionID),
			zap.String("end_reason", endReason),
			zap.Error(err))
		return newError(ErrorStorage, "force_finalize_failed", err)
	}
	return nil
}

// AppendTranscript appends one utterance to the session transcript,
// creating a minimal fallback record first when the session cannot be
// resolved, exactly as LogEvent does.
func (s *Store) AppendTranscript(ctx context.Context, sessionID, role, text, timestamp string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(role) == "" {
		return newError(ErrorInvalidInput, "missing_transcript_key", nil)
	}
	if timestamp == "" {
		timestamp = s.nowRFC3339()
	}
	entry := domain.TranscriptEntry{Role: role, Text: text, Timestamp: timestamp}

	key, found := s.resolve(ctx, sessionID)
	if !found {
		_, err := s.createFallbackRecord(ctx, sessionID, fallbackSeed{transcript: &entry})
		return err
	}

	ops := []repository.UpdateOp{
		repository.Append(attrTranscripts, transcriptElem(entry)),
		repository.Set(attrLastUpdateTime, sv(s.nowRFC3339())),
	}
	if err := s.table.Update(ctx, key.PK, key.SK, ops); err != nil {
		s.log.Error("failed to append transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return newError(ErrorStorage, "append_transcript_failed", err)
	}
	return nil
}

// GetSession reads back a voice diagnostics session. When both the cache
// and the durable paths miss and a property id hint is supplied, the direct
// key construction is attempted as a final optimization before giving up.
func (s *Store) GetSession(ctx context.Context, sessionID, propertyID string) (*domain.VoiceDiagnosticsSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, newError(ErrorInvalidInput, "missing_session_id", nil)
	}

	key, item, ok := s.resolveWithItem(ctx, sessionID)
	if !ok && propertyID != "" {
		direct := domain.VoiceKey(propertyID, sessionID)
		got, err := s.table.Get(ctx, direct.PK, direct.SK)
		if err == nil && got != nil {
			key, item, ok = direct, got, true
			s.recordLocation(ctx, sessionID, key)
		}
	}
	if !ok {
		return nil, newError(ErrorNotFound, "session_not_found", nil)
	}
	sess := voiceFromItem(item)
	return &sess, nil
}

// ListSessions returns one page of a property's voice diagnostics sessions.
func (s *Store) ListSessions(ctx context.Context, propertyID, pageToken string) ([]domain.VoiceDiagnosticsSession, string, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, "", newError(ErrorInvalidInput, "missing_property_id", nil)
	}
	page, err := s.table.QueryPrefix(ctx, domain.PropertyPK(propertyID), domain.SKPrefixVoice, pageToken)
	if err != nil {
		return nil, "", newError(ErrorStorage, "list_sessions_failed", err)
	}
	out := make([]domain.VoiceDiagnosticsSession, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, voiceFromItem(item))
	}
	return out, page.NextToken, nil
}

// ListSessionsByOwner returns one page of a user's voice diagnostics
// sessions via the owner index, newest first.
func (s *Store) ListSessionsByOwner(ctx context.Context, ownerUserID, pageToken string) ([]domain.VoiceDiagnosticsSession, string, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, "", newError(ErrorInvalidInput, "missing_owner_user_id", nil)
	}
	page, err := s.table.QueryOwner(ctx, ownerUserID, pageToken)
	if err != nil {
		return nil, "", newError(ErrorStorage, "list_sessions_by_owner_failed", err)
	}
	out := make([]domain.VoiceDiagnosticsSession, 0, len(page.Items))
	for _, item := range page.Items {
		if strAttr(item, attrRecordType) != recordVoice {
			continue
		}
		out = append(out, voiceFromItem(item))
	}
	return out, page.NextToken, nil
}

// resolveWithItem resolves the session and reads the target item. A
// resolved key whose item has vanished counts as unresolved; the pointer
// invariant makes that path rare.
func (s *Store) resolveWithItem(ctx context.Context, sessionID string) (domain.ItemKey, repository.Item, bool) {
	key, found := s.resolve(ctx, sessionID)
	if !found {
		return domain.ItemKey{}, nil, false
	}
	item, err := s.table.Get(ctx, key.PK, key.SK)
	if err != nil {
		s.log.Warn("failed to read resolved session record",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return domain.ItemKey{}, nil, false
	}
	if item == nil {
		return domain.ItemKey{}, nil, false
	}
	return key, item, true
}

func totalErrorsFrom(metrics map[string]any) int {
	for _, name := range []string{"totalErrors", "total_errors"} {
		switch v := metrics[name].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
