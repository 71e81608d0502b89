// Package settlement computes the platform fee at end-of-match and the
// per-participant payout at claim time.
//
// Both computations are pure functions on uint64 base units with 128-bit
// intermediates; they never touch storage or move funds. The lifecycle engine
// applies the results and requests the matching escrow transfers.
package settlement

import (
	"errors"
	"math/bits"

	"github.com/goalpost/settlement-engine/internal/model"
)

// ErrOverflow is returned when a settlement computation cannot be
// represented in 64 bits.
var ErrOverflow = errors.New("settlement: arithmetic overflow")

// bpsScale is the basis-point denominator for fee rates.
const bpsScale = 10_000

// DefaultFeeBps is the platform fee rate: 5% of the pooled escrow.
const DefaultFeeBps = 500

// PlatformFee returns floor(escrowBalance × feeBps / 10000), the amount
// extracted to the admin when a match ends. feeBps above 10000 is rejected:
// a fee can never exceed the pool.
func PlatformFee(escrowBalance uint64, feeBps uint64) (uint64, error) {
	if feeBps > bpsScale {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(escrowBalance, feeBps)
	// feeBps ≤ 10000 < 2^64 keeps hi < bpsScale, so the quotient fits.
	if hi >= bpsScale {
		return 0, ErrOverflow
	}
	fee, _ := bits.Div64(hi, lo, bpsScale)
	return fee, nil
}

// Payout returns floor(callerShares × escrowBalance / totalShares), the
// caller's proportional claim on the pool as it stands at claim time. The
// total is fixed at end-of-match while the balance diminishes as earlier
// claimants are paid. A zero total (nobody backed the winner) pays zero
// rather than dividing by zero.
func Payout(callerShares, escrowBalance, totalShares uint64) (uint64, error) {
	if totalShares == 0 || callerShares == 0 {
		return 0, nil
	}
	if callerShares > totalShares {
		// A position can never exceed the pool total; refuse to mint funds.
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(callerShares, escrowBalance)
	// callerShares ≤ totalShares guarantees the quotient ≤ escrowBalance.
	if hi >= totalShares {
		return 0, ErrOverflow
	}
	payout, _ := bits.Div64(hi, lo, totalShares)
	return payout, nil
}

// ClaimAmount resolves a participant's payout for an ended match under the
// settled outcome.
//
// Winner outcomes pay the caller's winning-side shares against the winning
// total. A draw refunds pro rata to gross deposits: the participant's
// deposited amount against the match's total deposits. Losing-side-only
// positions pay zero.
func ClaimAmount(m *model.MatchState, pos *model.ParticipantPosition) (uint64, error) {
	switch m.Winner {
	case model.OutcomeA:
		return Payout(pos.SharesA, m.EscrowBalance, m.TotalSharesA)
	case model.OutcomeB:
		return Payout(pos.SharesB, m.EscrowBalance, m.TotalSharesB)
	case model.OutcomeDraw:
		return Payout(pos.Deposited, m.EscrowBalance, m.TotalDeposited)
	default:
		return 0, nil
	}
}

// DecideWinner fixes the outcome from the final scores: the strictly greater
// score wins, equal scores settle as a draw.
func DecideWinner(scoreA, scoreB uint32) model.Outcome {
	switch {
	case scoreA > scoreB:
		return model.OutcomeA
	case scoreB > scoreA:
		return model.OutcomeB
	default:
		return model.OutcomeDraw
	}
}
