// Package store defines the persistence interface for the settlement engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Records are keyed by match identifier (MatchState) and by the
// (match identifier, participant identifier) pair (ParticipantPosition).
// Implementations must apply each write atomically per record.
package store

import (
	"context"
	"errors"

	"github.com/goalpost/settlement-engine/internal/model"
)

var (
	// ErrMatchExists is returned by CreateMatch when the identifier is
	// already taken. Match identifiers are never reusable.
	ErrMatchExists = errors.New("store: match already exists")

	// ErrMatchNotFound is returned when no MatchState exists for an ID.
	ErrMatchNotFound = errors.New("store: match not found")

	// ErrPositionNotFound is returned when a participant has no position
	// in a match.
	ErrPositionNotFound = errors.New("store: position not found")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Match records ---

	// CreateMatch persists a new match. Fails ErrMatchExists on ID reuse.
	CreateMatch(ctx context.Context, m *model.MatchState) error

	// GetMatch retrieves a match by its ID.
	GetMatch(ctx context.Context, matchID string) (*model.MatchState, error)

	// UpdateMatch replaces the stored record for m.MatchID.
	UpdateMatch(ctx context.Context, m *model.MatchState) error

	// ListMatches returns all matches.
	ListMatches(ctx context.Context) ([]model.MatchState, error)

	// --- Position records ---

	// GetPosition retrieves one participant's position in a match.
	GetPosition(ctx context.Context, matchID, participantID string) (*model.ParticipantPosition, error)

	// PutPosition inserts or replaces a position record.
	PutPosition(ctx context.Context, p *model.ParticipantPosition) error

	// ListPositions returns all positions in a match.
	ListPositions(ctx context.Context, matchID string) ([]model.ParticipantPosition, error)
}
