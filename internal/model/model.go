// Package model defines the core domain types shared across the settlement
// engine. All monetary amounts are uint64 base units of the backing currency,
// never float64.
package model

import "time"

// MatchStatus is the lifecycle phase of a match. Transitions are strictly
// forward: NotStarted → Live → Ended.
type MatchStatus string

const (
	StatusNotStarted MatchStatus = "NotStarted"
	StatusLive       MatchStatus = "Live"
	StatusEnded      MatchStatus = "Ended"
)

// Outcome identifies the settled result of a match, fixed at end-of-match.
type Outcome string

const (
	OutcomeNone Outcome = ""     // match not yet ended
	OutcomeA    Outcome = "A"    // outcome A won
	OutcomeB    Outcome = "B"    // outcome B won
	OutcomeDraw Outcome = "Draw" // tied final score, deposits refunded pro rata
)

// MatchState is the authoritative record for one match, keyed by MatchID.
// Created by initialize, mutated by start/deposit/score-update/end, never
// deleted.
type MatchState struct {
	MatchID string `json:"match_id" db:"match_id"`

	// Identities authorized for admin-only and oracle-only operations.
	// Immutable after initialize.
	AdminIdentity  string `json:"admin_identity" db:"admin_identity"`
	OracleIdentity string `json:"oracle_identity" db:"oracle_identity"`

	// Display labels, also used as the deposit-side selector.
	OutcomeAName string `json:"outcome_a_name" db:"outcome_a_name"`
	OutcomeBName string `json:"outcome_b_name" db:"outcome_b_name"`

	// Virtual pool reserves used only for pricing. Seeded equal at
	// initialization, evolved by deposits and score rebalancing.
	VirtualReserveA uint64 `json:"virtual_reserve_a" db:"virtual_reserve_a"`
	VirtualReserveB uint64 `json:"virtual_reserve_b" db:"virtual_reserve_b"`

	// Cumulative minted shares per side. Never decrease; claims zero
	// individual positions, not these totals.
	TotalSharesA uint64 `json:"total_shares_a" db:"total_shares_a"`
	TotalSharesB uint64 `json:"total_shares_b" db:"total_shares_b"`

	// Authoritative oracle-reported scores, monotonically non-decreasing.
	ScoreA uint32 `json:"score_a" db:"score_a"`
	ScoreB uint32 `json:"score_b" db:"score_b"`

	// EscrowBalance is the engine's running total of undistributed deposited
	// funds. Must equal what the escrow collaborator custodies.
	EscrowBalance uint64 `json:"escrow_balance" db:"escrow_balance"`

	// TotalDeposited is the gross sum of all deposits, fixed after end.
	// Denominator for pro-rata draw refunds.
	TotalDeposited uint64 `json:"total_deposited" db:"total_deposited"`

	Status MatchStatus `json:"status" db:"status"`

	// Winner is fixed at endGame and never changes afterwards.
	Winner Outcome `json:"winner" db:"winner"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SideOf maps a deposit-side selector to an outcome. Returns OutcomeNone if
// the name matches neither side.
func (m *MatchState) SideOf(name string) Outcome {
	switch name {
	case m.OutcomeAName:
		return OutcomeA
	case m.OutcomeBName:
		return OutcomeB
	default:
		return OutcomeNone
	}
}

// ParticipantPosition is one participant's claim balances in one match,
// keyed by (MatchID, ParticipantID). Created lazily on first deposit.
// Claiming empties the position rather than deleting it.
type ParticipantPosition struct {
	MatchID       string `json:"match_id" db:"match_id"`
	ParticipantID string `json:"participant_id" db:"participant_id"`

	SharesA uint64 `json:"shares_a" db:"shares_a"`
	SharesB uint64 `json:"shares_b" db:"shares_b"`

	// Deposited is the gross amount this participant has paid in across both
	// sides. Basis for draw refunds; zeroed together with shares on claim.
	Deposited uint64 `json:"deposited" db:"deposited"`
}

// Empty reports whether the position holds no claim.
func (p *ParticipantPosition) Empty() bool {
	return p.SharesA == 0 && p.SharesB == 0 && p.Deposited == 0
}
