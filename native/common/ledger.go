package common

import (
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/types"
	"excelsior/crypto"
)

// LedgerState is the slice of state every engine needs to reach the global
// ledger record.
type LedgerState interface {
	LedgerGet() (*types.GlobalLedger, bool, error)
	LedgerPut(ledger *types.GlobalLedger) error
}

// LoadLedger returns the global ledger, rejecting a missing record and any
// record whose layout predates the current binary.
func LoadLedger(state LedgerState) (*types.GlobalLedger, error) {
	if state == nil {
		return nil, fmt.Errorf("ledger state not configured")
	}
	ledger, ok, err := state.LedgerGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledgererrors.ErrNotInitialized
	}
	if ledger.Version < types.LedgerLayoutVersion {
		return nil, fmt.Errorf("ledger layout v%d: %w", ledger.Version, ledgererrors.ErrLayoutOutdated)
	}
	return ledger, nil
}

// RequireAdmin rejects callers other than the ledger admin.
func RequireAdmin(ledger *types.GlobalLedger, caller crypto.Address) error {
	if ledger == nil || caller.IsZero() || ledger.Admin != caller {
		return ledgererrors.ErrUnauthorized
	}
	return nil
}
