package store

import (
	"context"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/repository"
)

// resolver is one strategy for locating a session's physical address.
// Strategies are consulted in order; each reports found=false to pass the
// attempt to the next one.
type resolver interface {
	name() string
	resolve(ctx context.Context, sessionID string) (domain.ItemKey, bool, error)
}

// cacheResolver consults the process-local key cache. Never authoritative;
// a miss simply defers to the durable strategies.
type cacheResolver struct {
	cache *cache.Cache
}

func (r *cacheResolver) name() string { return "cache" }

func (r *cacheResolver) resolve(_ context.Context, sessionID string) (domain.ItemKey, bool, error) {
	if v, found := r.cache.Get(sessionID); found {
		if key, ok := v.(domain.ItemKey); ok {
			return key, true, nil
		}
	}
	return domain.ItemKey{}, false, nil
}

// pointerResolver reads the durable pointer record for the session.
type pointerResolver struct {
	table Table
}

func (r *pointerResolver) name() string { return "pointer" }

func (r *pointerResolver) resolve(ctx context.Context, sessionID string) (domain.ItemKey, bool, error) {
	key := domain.PointerKey(sessionID)
	item, err := r.table.Get(ctx, key.PK, key.SK)
	if err != nil {
		return domain.ItemKey{}, false, err
	}
	if item == nil {
		return domain.ItemKey{}, false, nil
	}
	ptr := pointerFromItem(item)
	if ptr.TargetPK == "" || ptr.TargetSK == "" {
		return domain.ItemKey{}, false, nil
	}
	return domain.ItemKey{PK: ptr.TargetPK, SK: ptr.TargetSK}, true, nil
}

// voiceScanResolver scans the diagnostics partition space for the session
// id. Last resort; the pointer record exists precisely to keep steady-state
// traffic off this path.
type voiceScanResolver struct {
	table Table
}

func (r *voiceScanResolver) name() string { return "diagnostics_scan" }

func (r *voiceScanResolver) resolve(ctx context.Context, sessionID string) (domain.ItemKey, bool, error) {
	items, err := r.table.ScanPrefix(ctx, domain.SKPrefixVoice, attrSessionID, sessionID)
	if err != nil {
		return domain.ItemKey{}, false, err
	}
	if len(items) == 0 {
		return domain.ItemKey{}, false, nil
	}
	item := items[0]
	return domain.ItemKey{PK: strAttr(item, repository.PartitionKey), SK: strAttr(item, repository.SortKey)}, true, nil
}

// fallbackScanResolver queries the session's own partition for minimal
// fallback records, newest-keyed last. Used by the configuration write
// chain, which must find a fallback target before creating yet another one.
type fallbackScanResolver struct {
	table Table
}

func (r *fallbackScanResolver) name() string { return "fallback_scan" }

func (r *fallbackScanResolver) resolve(ctx context.Context, sessionID string) (domain.ItemKey, bool, error) {
	page, err := r.table.QueryPrefix(ctx, domain.SessionPK(sessionID), domain.SKPrefixFallback, "")
	if err != nil {
		return domain.ItemKey{}, false, err
	}
	if len(page.Items) == 0 {
		return domain.ItemKey{}, false, nil
	}
	item := page.Items[len(page.Items)-1]
	return domain.ItemKey{PK: strAttr(item, repository.PartitionKey), SK: strAttr(item, repository.SortKey)}, true, nil
}

// resolve walks the resolver chain for sessionID. Any success past the
// cache populates the cache; a scan hit also rewrites the durable pointer
// so the next process skips the scan.
func (s *Store) resolve(ctx context.Context, sessionID string) (domain.ItemKey, bool) {
	for i, r := range s.resolvers {
		key, found, err := r.resolve(ctx, sessionID)
		if err != nil {
			s.log.Warn("session resolution strategy failed",
				zap.String("session_id", sessionID),
				zap.String("strategy", r.name()),
				zap.Error(err))
			continue
		}
		if !found {
			continue
		}
		if i > 0 {
			s.keyCache.Set(sessionID, key, cache.DefaultExpiration)
		}
		if r.name() == "diagnostics_scan" {
			s.recordLocation(ctx, sessionID, key)
		}
		return key, true
	}
	return domain.ItemKey{}, false
}

// recordLocation writes the session's physical address to both the cache
// and the durable pointer record. Called whenever a location is newly known
// or changes, including when a fallback record becomes the canonical target.
func (s *Store) recordLocation(ctx context.Context, sessionID string, key domain.ItemKey) {
	s.keyCache.Set(sessionID, key, cache.DefaultExpiration)

	ptrKey := domain.PointerKey(sessionID)
	now := s.nowRFC3339()
	err := s.table.Put(ctx, repository.Item{
		repository.PartitionKey: sv(ptrKey.PK),
		repository.SortKey:      sv(ptrKey.SK),
		attrRecordType:          sv(recordPointer),
		attrSessionID:           sv(sessionID),
		attrTargetPK:            sv(key.PK),
		attrTargetSK:            sv(key.SK),
		attrCreatedAt:           sv(now),
		attrLastUpdateTime:      sv(now),
	})
	if err != nil {
		s.log.Warn("failed to write session pointer",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// ClearKeyCache drops every cached session address, forcing the durable
// resolution paths. Exposed for operational tooling and tests.
func (s *Store) ClearKeyCache() {
	s.keyCache.Flush()
}
