package store

import (
	"context"
	"sync"

	"github.com/goalpost/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	matches   map[string]*model.MatchState
	positions map[string]*model.ParticipantPosition
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:   make(map[string]*model.MatchState),
		positions: make(map[string]*model.ParticipantPosition),
	}
}

func posKey(matchID, participantID string) string {
	return matchID + "\x00" + participantID
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *model.MatchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[m.MatchID]; exists {
		return ErrMatchExists
	}

	// Store a copy to avoid external mutation.
	cp := *m
	s.matches[m.MatchID] = &cp
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, matchID string) (*model.MatchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) UpdateMatch(_ context.Context, m *model.MatchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.MatchID]; !ok {
		return ErrMatchNotFound
	}
	cp := *m
	s.matches[m.MatchID] = &cp
	return nil
}

func (s *MemoryStore) ListMatches(_ context.Context) ([]model.MatchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]model.MatchState, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, *m)
	}
	return matches, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, matchID, participantID string) (*model.ParticipantPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[posKey(matchID, participantID)]
	if !ok {
		return nil, ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutPosition(_ context.Context, p *model.ParticipantPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.positions[posKey(p.MatchID, p.ParticipantID)] = &cp
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, matchID string) ([]model.ParticipantPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ParticipantPosition
	for _, p := range s.positions {
		if p.MatchID == matchID {
			out = append(out, *p)
		}
	}
	return out, nil
}
