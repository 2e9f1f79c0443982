package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

const fallbackNote = "minimal record created automatically: no primary session record could be located for an incoming event"

// fallbackSeed carries the triggering data a new minimal record must hold
// so that the write that could not find its session is not lost.
type fallbackSeed struct {
	event      *domain.TimelineEvent
	transcript *domain.TranscriptEntry
	note       string
}

// createFallbackRecord writes a minimal fallback record for an orphaned
// session id and promotes it to the session's canonical target in the cache
// and pointer store. Subsequent writes for the same id land on this record
// directly. Fallback records are never deleted here; cleanup is an external
// maintenance task.
func (s *Store) createFallbackRecord(ctx context.Context, sessionID string, seed fallbackSeed) (domain.ItemKey, error) {
	now := s.now()
	key := domain.ItemKey{
		PK: domain.SessionPK(sessionID),
		SK: domain.FallbackSK(now),
	}
	nowStr := now.Format(time.RFC3339)

	note := seed.note
	if note == "" {
		note = fallbackNote
	}

	item := repository.Item{
		repository.PartitionKey: sv(key.PK),
		repository.SortKey:      sv(key.SK),
		attrRecordType:          sv(recordFallback),
		attrSessionID:           sv(sessionID),
		attrStatus:              sv(domain.StatusUnknown),
		attrChannel:             sv(domain.ChannelVoiceCall),
		attrNote:                sv(note),
		attrCreatedAt:           sv(nowStr),
		attrLastUpdateTime:      sv(nowStr),
		attrQualityMetrics:      emptyMap(),
		attrTechConfig:          emptyMap(),
		attrEventTimeline:       emptyList(),
		attrErrors:              emptyList(),
		attrWarnings:            emptyList(),
		attrTranscripts:         emptyList(),
	}
	if seed.event != nil {
		item[attrEventTimeline] = &types.AttributeValueMemberL{Value: []types.AttributeValue{eventElem(*seed.event)}}
		if seed.event.Error != "" {
			item[attrErrors] = &types.AttributeValueMemberL{Value: stringListElems([]string{seed.event.Error})}
		}
		if seed.event.Warning != "" {
			item[attrWarnings] = &types.AttributeValueMemberL{Value: stringListElems([]string{seed.event.Warning})}
		}
	}
	if seed.transcript != nil {
		item[attrTranscripts] = &types.AttributeValueMemberL{Value: []types.AttributeValue{transcriptElem(*seed.transcript)}}
	}

	if err := s.table.Put(ctx, item); err != nil {
		s.log.Error("failed to create fallback record",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return domain.ItemKey{}, newError(ErrorStorage, "create_fallback_record_failed", err)
	}

	s.log.Warn("created minimal fallback record for orphaned session event",
		zap.String("session_id", sessionID),
		zap.String("sk", key.SK))
	s.recordLocation(ctx, sessionID, key)
	return key, nil
}
