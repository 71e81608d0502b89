// Package curve implements the virtual-liquidity pricing engine for
// binary-outcome prediction matches.
//
// Pricing follows a constant-product virtual pool: each side of the match has
// a virtual reserve, seeded equal at initialization, and a deposit of `amt`
// into a side mints the swap output of the opposite reserve:
//
//	k       = reserveIn × reserveOut
//	in'     = reserveIn + amt
//	out'    = floor(k / in')
//	minted  = reserveOut − out'
//
// The in-side reserve grows with every deposit, so shares-per-unit strictly
// decreases as a side accumulates backing: earlier deposits, and deposits
// into the less-backed side, always get a better price.
//
// Score updates additionally rebalance the reserves through a goal-difference
// multiplier table in basis points, making the leading side's shares more
// expensive for subsequent deposits.
//
// All quantities are uint64 base units. Intermediate products use 128-bit
// arithmetic via math/bits; any result that cannot be represented fails with
// ErrOverflow and no state change. Never float64 for money.
package curve

import (
	"errors"
	"math/bits"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow is returned when a pricing computation cannot be
	// represented in 64 bits. The caller must apply no state change.
	ErrOverflow = errors.New("curve: arithmetic overflow")

	// ErrInvalidLiquidity is returned when the initial virtual liquidity
	// is zero.
	ErrInvalidLiquidity = errors.New("curve: initial virtual liquidity must be positive")

	// ErrZeroAmount is returned for a zero deposit amount.
	ErrZeroAmount = errors.New("curve: deposit amount must be positive")
)

// Basis-point scale for reserve multipliers and fee rates.
const BpsScale = 10_000

// Curve prices deposits against virtual reserves. It is stateless: reserves
// are passed as arguments, not stored, so the same Curve serves every match.
type Curve struct {
	minReserve uint64
}

// New creates a pricing curve. minReserve is the floor no reserve is ever
// reduced below; values below 1 are raised to 1.
func New(minReserve uint64) *Curve {
	if minReserve < 1 {
		minReserve = 1
	}
	return &Curve{minReserve: minReserve}
}

// MinReserve returns the configured reserve floor.
func (c *Curve) MinReserve() uint64 { return c.minReserve }

// SeedReserves validates an initial virtual liquidity and returns the seeded
// reserve pair (both sides equal).
func (c *Curve) SeedReserves(initialLiquidity uint64) (uint64, uint64, error) {
	if initialLiquidity == 0 {
		return 0, 0, ErrInvalidLiquidity
	}
	return initialLiquidity, initialLiquidity, nil
}

// MintResult is the outcome of pricing one deposit.
type MintResult struct {
	Minted        uint64 // shares credited to the depositor
	NewReserveIn  uint64 // deposited side's reserve after the swap
	NewReserveOut uint64 // opposite side's reserve after the swap
}

// Mint prices a deposit of amount into the side whose reserve is reserveIn.
// Returns the minted share quantity and both updated reserves, or ErrOverflow
// with no partial result.
func (c *Curve) Mint(reserveIn, reserveOut, amount uint64) (MintResult, error) {
	if amount == 0 {
		return MintResult{}, ErrZeroAmount
	}

	newIn, carry := bits.Add64(reserveIn, amount, 0)
	if carry != 0 {
		return MintResult{}, ErrOverflow
	}

	hi, lo := bits.Mul64(reserveIn, reserveOut)
	// Quotient fits in 64 bits iff hi < divisor; with newIn > reserveIn this
	// always holds, but a panic inside Div64 must never escape the engine.
	if hi >= newIn {
		return MintResult{}, ErrOverflow
	}
	newOut, _ := bits.Div64(hi, lo, newIn)

	if newOut < c.minReserve {
		newOut = c.minReserve
	}
	if newOut > reserveOut {
		// Reserve was already at the floor; nothing left to mint against.
		newOut = reserveOut
	}

	return MintResult{
		Minted:        reserveOut - newOut,
		NewReserveIn:  newIn,
		NewReserveOut: newOut,
	}, nil
}

// Multipliers returns the reserve multipliers in basis points for a given
// goal difference (scoreA − scoreB).
//
//	diff ≥ +3 → (14000, 6000)
//	     +2  → (13500, 6500)
//	     +1  → (12500, 7500)
//	      0  → (10000, 10000)
//	     −1  → ( 7500, 12500)
//	     −2  → ( 6500, 13500)
//	diff ≤ −3 → ( 6000, 14000)
func Multipliers(goalDiff int64) (multA, multB uint64) {
	switch {
	case goalDiff >= 3:
		return 14_000, 6_000
	case goalDiff == 2:
		return 13_500, 6_500
	case goalDiff == 1:
		return 12_500, 7_500
	case goalDiff == -1:
		return 7_500, 12_500
	case goalDiff == -2:
		return 6_500, 13_500
	case goalDiff <= -3:
		return 6_000, 14_000
	default:
		return 10_000, 10_000
	}
}

// RebalanceResult carries the reserves and multipliers of one score-coupled
// rebalance.
type RebalanceResult struct {
	NewReserveA uint64
	NewReserveB uint64
	MultA       uint64
	MultB       uint64
}

// Rebalance applies the goal-difference multipliers to both reserves:
//
//	newReserve = floor(oldReserve × mult / 10000)
//
// floored at the configured minimum reserve. Pure function of the prior
// reserves and the new scores.
func (c *Curve) Rebalance(reserveA, reserveB uint64, scoreA, scoreB uint32) (RebalanceResult, error) {
	goalDiff := int64(scoreA) - int64(scoreB)
	multA, multB := Multipliers(goalDiff)

	newA, err := c.scale(reserveA, multA)
	if err != nil {
		return RebalanceResult{}, err
	}
	newB, err := c.scale(reserveB, multB)
	if err != nil {
		return RebalanceResult{}, err
	}

	return RebalanceResult{
		NewReserveA: newA,
		NewReserveB: newB,
		MultA:       multA,
		MultB:       multB,
	}, nil
}

// scale computes floor(reserve × mult / BpsScale) with a 128-bit
// intermediate, flooring the result at minReserve.
func (c *Curve) scale(reserve, mult uint64) (uint64, error) {
	hi, lo := bits.Mul64(reserve, mult)
	if hi >= BpsScale {
		return 0, ErrOverflow
	}
	scaled, _ := bits.Div64(hi, lo, BpsScale)
	if scaled < c.minReserve {
		scaled = c.minReserve
	}
	return scaled, nil
}

// --- Quote surface ---
//
// Quotes are informational reads derived from the reserves. They use
// shopspring/decimal for exact display math; nothing here feeds back into
// settlement arithmetic.

// quoteScale is the number of decimal places in quote values.
const quoteScale int32 = 6

// ImpliedProbability returns the market-implied win probability of the side
// whose reserve is reserveSelf: reserveSelf / (reserveSelf + reserveOther).
func ImpliedProbability(reserveSelf, reserveOther uint64) decimal.Decimal {
	self := decimal.NewFromUint64(reserveSelf)
	total := self.Add(decimal.NewFromUint64(reserveOther))
	if total.IsZero() {
		return decimal.Zero
	}
	return self.Div(total).Round(quoteScale)
}

// SharesPerUnit returns the marginal shares minted per unit of currency for a
// deposit into the side whose reserve is reserveIn: reserveOut / reserveIn.
func SharesPerUnit(reserveIn, reserveOut uint64) decimal.Decimal {
	if reserveIn == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(reserveOut).
		Div(decimal.NewFromUint64(reserveIn)).
		Round(quoteScale)
}
