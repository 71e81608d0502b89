// Package escrow defines the capability through which the engine requests
// custody transfers. The engine only computes amounts; the implementation
// owns the actual movement of funds.
package escrow

import "context"

// Escrow is the custody collaborator for deposited match funds. Every call
// is a request: Collect pulls a deposit from a participant into the match's
// holding account, Disburse pays out of it.
type Escrow interface {
	// Collect requests a transfer of amount from participant into the
	// match's holding account.
	Collect(ctx context.Context, matchID, participant string, amount uint64) error

	// Disburse requests a transfer of amount from the match's holding
	// account to the recipient identity.
	Disburse(ctx context.Context, matchID, recipient string, amount uint64) error

	// Balance reports the holding-account balance for a match.
	Balance(ctx context.Context, matchID string) (uint64, error)
}
