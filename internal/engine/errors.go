package engine

import "errors"

// Lifecycle and validation errors surfaced to callers. Authorization errors
// live in internal/auth, arithmetic errors in internal/curve and
// internal/settlement, and ID-reuse in internal/store; together they form
// the engine's full error surface.
var (
	// ErrMatchNotLiveYet rejects deposits, score updates and end-of-match
	// while the match is not Live.
	ErrMatchNotLiveYet = errors.New("engine: match is not live")

	// ErrMatchNotEndedYet rejects claims before the match has ended.
	ErrMatchNotEndedYet = errors.New("engine: match has not ended")

	// ErrMatchAlreadyStarted rejects startGame once the match left
	// NotStarted.
	ErrMatchAlreadyStarted = errors.New("engine: match has already started")

	// ErrMatchAlreadyEnded rejects endGame on an ended match.
	ErrMatchAlreadyEnded = errors.New("engine: match has already ended")

	// ErrInvalidTeamName rejects a deposit side that matches neither
	// outcome label, and initialization with unusable labels.
	ErrInvalidTeamName = errors.New("engine: invalid team name")

	// ErrInvalidAmount rejects non-positive deposit amounts.
	ErrInvalidAmount = errors.New("engine: deposit amount must be positive")

	// ErrScoreCannotDecrease enforces monotonically non-decreasing scores.
	ErrScoreCannotDecrease = errors.New("engine: score cannot decrease")

	// ErrScoreTooHigh enforces the configured score ceiling.
	ErrScoreTooHigh = errors.New("engine: score exceeds ceiling")

	// ErrNoScoreChange rejects score updates that change neither score.
	ErrNoScoreChange = errors.New("engine: no change in score")
)
