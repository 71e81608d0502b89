// Package auth implements the authorization guard for match operations.
//
// Every check is a pure predicate over the caller's verified identity and the
// match record. Identity verification itself happens upstream; this package
// only compares identities against the roles stored at initialization.
package auth

import (
	"errors"

	"github.com/goalpost/settlement-engine/internal/model"
)

var (
	// ErrUnauthorizedAdmin is returned when an admin-only operation is
	// requested by a caller other than the match admin.
	ErrUnauthorizedAdmin = errors.New("auth: caller is not the match admin")

	// ErrUnauthorizedOracle is returned when a score update is requested by
	// a caller other than the match oracle.
	ErrUnauthorizedOracle = errors.New("auth: caller is not the match oracle")
)

// RequireAdmin checks that caller is the match's admin identity.
func RequireAdmin(m *model.MatchState, caller string) error {
	if caller != m.AdminIdentity {
		return ErrUnauthorizedAdmin
	}
	return nil
}

// RequireOracle checks that caller is the match's oracle identity.
func RequireOracle(m *model.MatchState, caller string) error {
	if caller != m.OracleIdentity {
		return ErrUnauthorizedOracle
	}
	return nil
}
