package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goalpost/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMatch(ctx context.Context, m *model.MatchState) error {
	if err := s.primary.CreateMatch(ctx, m); err != nil {
		return err
	}
	s.cacheMatch(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMatch(ctx context.Context, m *model.MatchState) error {
	if err := s.primary.UpdateMatch(ctx, m); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, matchKey(m.MatchID))
	return nil
}

func (s *CachedStore) PutPosition(ctx context.Context, p *model.ParticipantPosition) error {
	if err := s.primary.PutPosition(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(p.MatchID, p.ParticipantID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMatch(ctx context.Context, matchID string) (*model.MatchState, error) {
	data, err := s.rdb.Get(ctx, matchKey(matchID)).Bytes()
	if err == nil {
		var m model.MatchState
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.cacheMatch(ctx, m)
	return m, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, matchID, participantID string) (*model.ParticipantPosition, error) {
	data, err := s.rdb.Get(ctx, positionKey(matchID, participantID)).Bytes()
	if err == nil {
		var p model.ParticipantPosition
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, matchID, participantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(matchID, participantID), data, s.ttl)
	}
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMatches(ctx context.Context) ([]model.MatchState, error) {
	return s.primary.ListMatches(ctx)
}

func (s *CachedStore) ListPositions(ctx context.Context, matchID string) ([]model.ParticipantPosition, error) {
	return s.primary.ListPositions(ctx, matchID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMatch(ctx context.Context, m *model.MatchState) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, matchKey(m.MatchID), data, s.ttl)
	}
}

func matchKey(id string) string { return fmt.Sprintf("match:%s", id) }

func positionKey(matchID, participantID string) string {
	return fmt.Sprintf("position:%s:%s", matchID, participantID)
}
