// Package engine implements the match lifecycle: the state machine
// sequencing initialize → start → (deposit | score-update)* → end → claim*,
// with authorization delegated to internal/auth, pricing to internal/curve
// and payout math to internal/settlement.
//
// Every operation is atomic: it either commits a complete, consistent
// mutation of the match's records or fails with no observable state change.
// Operations are serialized under a mutex (single-instance); for horizontal
// scaling, replace with distributed locking or database-level optimistic
// concurrency.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goalpost/settlement-engine/internal/auth"
	"github.com/goalpost/settlement-engine/internal/curve"
	"github.com/goalpost/settlement-engine/internal/escrow"
	"github.com/goalpost/settlement-engine/internal/metrics"
	"github.com/goalpost/settlement-engine/internal/model"
	"github.com/goalpost/settlement-engine/internal/settlement"
	"github.com/goalpost/settlement-engine/internal/store"
)

// Config carries the engine's tunable parameters.
type Config struct {
	// FeeBps is the platform fee rate in basis points, taken at end-of-match.
	FeeBps uint64

	// ScoreCeiling is the highest score the oracle may report.
	ScoreCeiling uint32

	// MinReserve is the floor no virtual reserve is reduced below.
	MinReserve uint64
}

// DefaultConfig returns the production defaults: 5% fee, score ceiling 50.
func DefaultConfig() Config {
	return Config{
		FeeBps:       settlement.DefaultFeeBps,
		ScoreCeiling: 50,
		MinReserve:   1,
	}
}

// Event is broadcast after a committed state change.
type Event struct {
	Type     string `json:"type"`
	MatchID  string `json:"match_id"`
	Side     string `json:"side,omitempty"`
	Amount   uint64 `json:"amount,omitempty"`
	Shares   uint64 `json:"shares,omitempty"`
	ScoreA   uint32 `json:"score_a,omitempty"`
	ScoreB   uint32 `json:"score_b,omitempty"`
	ReserveA uint64 `json:"reserve_a,omitempty"`
	ReserveB uint64 `json:"reserve_b,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Payout   uint64 `json:"payout,omitempty"`
}

// Broadcaster pushes committed events to subscribers. Implementations must
// not block.
type Broadcaster interface {
	Broadcast(Event)
}

// Engine executes match operations against the store and escrow
// collaborators.
type Engine struct {
	store  store.Store
	escrow escrow.Escrow
	curve  *curve.Curve
	cfg    Config
	mu     sync.Mutex
	hub    Broadcaster // optional, nil disables broadcasting
}

// New creates an engine. Pass nil for hub if event broadcasting is not
// needed.
func New(st store.Store, esc escrow.Escrow, cfg Config, hub Broadcaster) *Engine {
	return &Engine{
		store:  st,
		escrow: esc,
		curve:  curve.New(cfg.MinReserve),
		cfg:    cfg,
		hub:    hub,
	}
}

// Store exposes the backing store for read-only queries.
func (e *Engine) Store() store.Store { return e.store }

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// InitializeParams are the inputs to match creation. Caller becomes the
// match admin.
type InitializeParams struct {
	MatchID          string
	Caller           string
	OracleIdentity   string
	InitialLiquidity uint64
	OutcomeAName     string
	OutcomeBName     string
}

// Initialize creates a new match in NotStarted with both virtual reserves
// seeded to the initial liquidity. Fails if the match ID is already taken.
func (e *Engine) Initialize(ctx context.Context, p InitializeParams) (*model.MatchState, error) {
	if p.OutcomeAName == "" || p.OutcomeBName == "" || p.OutcomeAName == p.OutcomeBName {
		return nil, ErrInvalidTeamName
	}

	reserveA, reserveB, err := e.curve.SeedReserves(p.InitialLiquidity)
	if err != nil {
		return nil, err
	}

	m := &model.MatchState{
		MatchID:         p.MatchID,
		AdminIdentity:   p.Caller,
		OracleIdentity:  p.OracleIdentity,
		OutcomeAName:    p.OutcomeAName,
		OutcomeBName:    p.OutcomeBName,
		VirtualReserveA: reserveA,
		VirtualReserveB: reserveB,
		Status:          model.StatusNotStarted,
		CreatedAt:       time.Now().UTC(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.CreateMatch(ctx, m); err != nil {
		return nil, err
	}

	metrics.MatchesInitialized.Inc()
	slog.Info("match initialized",
		"match", p.MatchID,
		"admin", p.Caller,
		"oracle", p.OracleIdentity,
		"outcome_a", p.OutcomeAName,
		"outcome_b", p.OutcomeBName,
		"liquidity", p.InitialLiquidity,
	)
	return m, nil
}

// StartGame moves a match from NotStarted to Live. Admin only.
func (e *Engine) StartGame(ctx context.Context, matchID, caller string) (*model.MatchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireAdmin(m, caller); err != nil {
		return nil, err
	}
	if m.Status != model.StatusNotStarted {
		return nil, ErrMatchAlreadyStarted
	}

	m.Status = model.StatusLive
	if err := e.store.UpdateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("start game %s: %w", matchID, err)
	}

	metrics.LiveMatches.Inc()
	slog.Info("match started", "match", matchID)
	e.broadcast(Event{Type: "match_started", MatchID: matchID})
	return m, nil
}

// DepositResult reports the outcome of one deposit.
type DepositResult struct {
	Side     model.Outcome
	Minted   uint64
	Match    *model.MatchState
	Position *model.ParticipantPosition
}

// Deposit prices amount against the chosen side's virtual reserve, credits
// the minted shares to the caller's position, and requests escrow collection
// of the funds. Only valid while the match is Live.
func (e *Engine) Deposit(ctx context.Context, matchID, caller string, amount uint64, side string) (*DepositResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.StatusLive {
		return nil, ErrMatchNotLiveYet
	}
	outcome := m.SideOf(side)
	if outcome == model.OutcomeNone {
		return nil, ErrInvalidTeamName
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	// Price the deposit before touching any state.
	var mint curve.MintResult
	if outcome == model.OutcomeA {
		mint, err = e.curve.Mint(m.VirtualReserveA, m.VirtualReserveB, amount)
	} else {
		mint, err = e.curve.Mint(m.VirtualReserveB, m.VirtualReserveA, amount)
	}
	if err != nil {
		return nil, err
	}

	pos, err := e.loadOrCreatePosition(ctx, matchID, caller)
	if err != nil {
		return nil, err
	}

	// Stage every mutation on copies; nothing is persisted until all
	// checked arithmetic has succeeded.
	next := *m
	nextPos := *pos
	if outcome == model.OutcomeA {
		next.VirtualReserveA = mint.NewReserveIn
		next.VirtualReserveB = mint.NewReserveOut
		if next.TotalSharesA, err = addU64(m.TotalSharesA, mint.Minted); err != nil {
			return nil, err
		}
		if nextPos.SharesA, err = addU64(pos.SharesA, mint.Minted); err != nil {
			return nil, err
		}
	} else {
		next.VirtualReserveB = mint.NewReserveIn
		next.VirtualReserveA = mint.NewReserveOut
		if next.TotalSharesB, err = addU64(m.TotalSharesB, mint.Minted); err != nil {
			return nil, err
		}
		if nextPos.SharesB, err = addU64(pos.SharesB, mint.Minted); err != nil {
			return nil, err
		}
	}
	if next.EscrowBalance, err = addU64(m.EscrowBalance, amount); err != nil {
		return nil, err
	}
	if next.TotalDeposited, err = addU64(m.TotalDeposited, amount); err != nil {
		return nil, err
	}
	if nextPos.Deposited, err = addU64(pos.Deposited, amount); err != nil {
		return nil, err
	}

	if err := e.escrow.Collect(ctx, matchID, caller, amount); err != nil {
		return nil, fmt.Errorf("collect deposit: %w", err)
	}
	if err := e.store.UpdateMatch(ctx, &next); err != nil {
		return nil, fmt.Errorf("deposit %s: %w", matchID, err)
	}
	if err := e.store.PutPosition(ctx, &nextPos); err != nil {
		return nil, fmt.Errorf("deposit %s: %w", matchID, err)
	}

	metrics.DepositsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.DepositVolume.WithLabelValues(string(outcome)).Add(float64(amount))
	slog.Info("deposit accepted",
		"match", matchID,
		"participant", caller,
		"side", side,
		"amount", amount,
		"minted", mint.Minted,
		"reserve_a", next.VirtualReserveA,
		"reserve_b", next.VirtualReserveB,
	)
	e.broadcast(Event{
		Type:     "deposit",
		MatchID:  matchID,
		Side:     side,
		Amount:   amount,
		Shares:   mint.Minted,
		ReserveA: next.VirtualReserveA,
		ReserveB: next.VirtualReserveB,
	})

	return &DepositResult{
		Side:     outcome,
		Minted:   mint.Minted,
		Match:    &next,
		Position: &nextPos,
	}, nil
}

// UpdateScore applies an oracle score report and the score-coupled reserve
// rebalance. Scores never decrease, never exceed the ceiling, and at least
// one must change.
func (e *Engine) UpdateScore(ctx context.Context, matchID, caller string, newScoreA, newScoreB uint32) (*model.MatchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOracle(m, caller); err != nil {
		return nil, err
	}
	if m.Status != model.StatusLive {
		return nil, ErrMatchNotLiveYet
	}
	if newScoreA < m.ScoreA || newScoreB < m.ScoreB {
		return nil, ErrScoreCannotDecrease
	}
	if newScoreA > e.cfg.ScoreCeiling || newScoreB > e.cfg.ScoreCeiling {
		return nil, ErrScoreTooHigh
	}
	if newScoreA == m.ScoreA && newScoreB == m.ScoreB {
		return nil, ErrNoScoreChange
	}

	reb, err := e.curve.Rebalance(m.VirtualReserveA, m.VirtualReserveB, newScoreA, newScoreB)
	if err != nil {
		return nil, err
	}

	next := *m
	next.ScoreA = newScoreA
	next.ScoreB = newScoreB
	next.VirtualReserveA = reb.NewReserveA
	next.VirtualReserveB = reb.NewReserveB

	if err := e.store.UpdateMatch(ctx, &next); err != nil {
		return nil, fmt.Errorf("update score %s: %w", matchID, err)
	}

	metrics.ScoreUpdatesTotal.Inc()
	slog.Info("score updated",
		"match", matchID,
		"old_score_a", m.ScoreA,
		"new_score_a", newScoreA,
		"old_score_b", m.ScoreB,
		"new_score_b", newScoreB,
		"old_reserve_a", m.VirtualReserveA,
		"new_reserve_a", reb.NewReserveA,
		"old_reserve_b", m.VirtualReserveB,
		"new_reserve_b", reb.NewReserveB,
		"mult_a", reb.MultA,
		"mult_b", reb.MultB,
	)
	e.broadcast(Event{
		Type:     "score_updated",
		MatchID:  matchID,
		ScoreA:   newScoreA,
		ScoreB:   newScoreB,
		ReserveA: reb.NewReserveA,
		ReserveB: reb.NewReserveB,
	})
	return &next, nil
}

// EndGame settles the match: fixes the winner from the final scores,
// extracts the platform fee to the admin, and moves the match to Ended.
// Admin only.
func (e *Engine) EndGame(ctx context.Context, matchID, caller string) (*model.MatchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireAdmin(m, caller); err != nil {
		return nil, err
	}
	switch m.Status {
	case model.StatusLive:
	case model.StatusEnded:
		return nil, ErrMatchAlreadyEnded
	default:
		return nil, ErrMatchNotLiveYet
	}

	fee, err := settlement.PlatformFee(m.EscrowBalance, e.cfg.FeeBps)
	if err != nil {
		return nil, err
	}

	next := *m
	next.Winner = settlement.DecideWinner(m.ScoreA, m.ScoreB)
	next.EscrowBalance = m.EscrowBalance - fee
	next.Status = model.StatusEnded

	if fee > 0 {
		if err := e.escrow.Disburse(ctx, matchID, m.AdminIdentity, fee); err != nil {
			return nil, fmt.Errorf("disburse platform fee: %w", err)
		}
	}
	if err := e.store.UpdateMatch(ctx, &next); err != nil {
		return nil, fmt.Errorf("end game %s: %w", matchID, err)
	}

	metrics.LiveMatches.Dec()
	metrics.MatchesSettled.WithLabelValues(string(next.Winner)).Inc()
	slog.Info("match ended",
		"match", matchID,
		"winner", next.Winner,
		"score_a", m.ScoreA,
		"score_b", m.ScoreB,
		"platform_fee", fee,
		"escrow_balance", next.EscrowBalance,
	)
	e.broadcast(Event{
		Type:    "match_ended",
		MatchID: matchID,
		ScoreA:  m.ScoreA,
		ScoreB:  m.ScoreB,
		Winner:  string(next.Winner),
	})
	return &next, nil
}

// ClaimResult reports a settled claim.
type ClaimResult struct {
	Payout   uint64
	Winner   model.Outcome
	Match    *model.MatchState
	Position *model.ParticipantPosition
}

// ClaimRewards pays the caller's proportional share of the remaining pool
// and zeroes the position. Claiming with no position, with losing-side
// shares only, or a second time pays zero rather than erroring.
func (e *Engine) ClaimRewards(ctx context.Context, matchID, caller string) (*ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.StatusEnded {
		return nil, ErrMatchNotEndedYet
	}

	pos, err := e.store.GetPosition(ctx, matchID, caller)
	if err == store.ErrPositionNotFound {
		pos = &model.ParticipantPosition{MatchID: matchID, ParticipantID: caller}
	} else if err != nil {
		return nil, err
	}

	payout, err := settlement.ClaimAmount(m, pos)
	if err != nil {
		return nil, err
	}

	next := *m
	next.EscrowBalance = m.EscrowBalance - payout
	nextPos := model.ParticipantPosition{MatchID: matchID, ParticipantID: caller}

	if payout > 0 {
		if err := e.escrow.Disburse(ctx, matchID, caller, payout); err != nil {
			return nil, fmt.Errorf("disburse payout: %w", err)
		}
	}
	if err := e.store.PutPosition(ctx, &nextPos); err != nil {
		return nil, fmt.Errorf("claim %s: %w", matchID, err)
	}
	if err := e.store.UpdateMatch(ctx, &next); err != nil {
		return nil, fmt.Errorf("claim %s: %w", matchID, err)
	}

	metrics.ClaimsTotal.Inc()
	if payout > 0 {
		metrics.PayoutVolume.Add(float64(payout))
	}
	slog.Info("rewards claimed",
		"match", matchID,
		"participant", caller,
		"winner", m.Winner,
		"payout", payout,
		"escrow_balance", next.EscrowBalance,
	)
	e.broadcast(Event{
		Type:    "rewards_claimed",
		MatchID: matchID,
		Winner:  string(m.Winner),
		Payout:  payout,
	})

	return &ClaimResult{
		Payout:   payout,
		Winner:   m.Winner,
		Match:    &next,
		Position: &nextPos,
	}, nil
}

// loadOrCreatePosition returns the caller's position, creating an empty one
// lazily on first deposit.
func (e *Engine) loadOrCreatePosition(ctx context.Context, matchID, participant string) (*model.ParticipantPosition, error) {
	pos, err := e.store.GetPosition(ctx, matchID, participant)
	if err == store.ErrPositionNotFound {
		return &model.ParticipantPosition{MatchID: matchID, ParticipantID: participant}, nil
	}
	if err != nil {
		return nil, err
	}
	return pos, nil
}

func (e *Engine) broadcast(ev Event) {
	if e.hub != nil {
		e.hub.Broadcast(ev)
	}
}

// addU64 is a checked uint64 addition.
func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, curve.ErrOverflow
	}
	return sum, nil
}
