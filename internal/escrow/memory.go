package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transfer is one executed custody movement. Direction is "collect" or
// "disburse". Transfers are append-only.
type Transfer struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Party     string    `json:"party"` // depositor or payout recipient
	Direction string    `json:"direction"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryEscrow implements Escrow with in-memory per-match balances and an
// append-only transfer log. Used for testing and development; production
// deployments substitute the real custody backend behind the same interface.
type MemoryEscrow struct {
	mu        sync.RWMutex
	balances  map[string]uint64
	transfers []Transfer
}

// NewMemoryEscrow creates an empty in-memory escrow.
func NewMemoryEscrow() *MemoryEscrow {
	return &MemoryEscrow{balances: make(map[string]uint64)}
}

func (e *MemoryEscrow) Collect(_ context.Context, matchID, participant string, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.balances[matchID]
	if bal+amount < bal {
		return fmt.Errorf("escrow: match %s balance overflow", matchID)
	}
	e.balances[matchID] = bal + amount
	e.record(matchID, participant, "collect", amount)
	return nil
}

func (e *MemoryEscrow) Disburse(_ context.Context, matchID, recipient string, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.balances[matchID]
	if amount > bal {
		return fmt.Errorf("escrow: match %s holds %d, cannot disburse %d", matchID, bal, amount)
	}
	e.balances[matchID] = bal - amount
	e.record(matchID, recipient, "disburse", amount)
	return nil
}

func (e *MemoryEscrow) Balance(_ context.Context, matchID string) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances[matchID], nil
}

// Transfers returns a copy of the transfer log for a match, in execution
// order.
func (e *MemoryEscrow) Transfers(matchID string) []Transfer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Transfer
	for _, t := range e.transfers {
		if t.MatchID == matchID {
			out = append(out, t)
		}
	}
	return out
}

// record appends a transfer entry. Caller holds the lock.
func (e *MemoryEscrow) record(matchID, party, direction string, amount uint64) {
	t := Transfer{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		Party:     party,
		Direction: direction,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	e.transfers = append(e.transfers, t)
	slog.Debug("escrow transfer",
		"transfer_id", t.ID,
		"match", matchID,
		"party", party,
		"direction", direction,
		"amount", amount,
	)
}
