// Package errors holds the failure taxonomy shared by every ledger operation.
// Package-level errors wrap these sentinels so callers can classify any
// failure with errors.Is.
package errors

import stderrors "errors"

var (
	ErrArithmeticOverflow  = stderrors.New("ledger: arithmetic overflow")
	ErrArithmeticUnderflow = stderrors.New("ledger: arithmetic underflow")
	ErrInsufficientFunds   = stderrors.New("ledger: insufficient funds")
	ErrInvalidProof        = stderrors.New("ledger: invalid proof")
	ErrAlreadyClaimed      = stderrors.New("ledger: already claimed")
	ErrNotReady            = stderrors.New("ledger: not ready")
	ErrUnauthorized        = stderrors.New("ledger: unauthorized")

	ErrNotInitialized  = stderrors.New("ledger: not initialized")
	ErrAlreadyExists   = stderrors.New("ledger: already exists")
	ErrNotFound        = stderrors.New("ledger: not found")
	ErrLayoutOutdated  = stderrors.New("ledger: record layout outdated, run upgrade_config")
	ErrInvalidArgument = stderrors.New("ledger: invalid argument")
)

// Kind labels for metrics, logs and transport error codes.
const (
	KindOverflow        = "arithmetic_overflow"
	KindUnderflow       = "arithmetic_underflow"
	KindInsufficient    = "insufficient_funds"
	KindInvalidProof    = "invalid_proof"
	KindAlreadyClaimed  = "already_claimed"
	KindNotReady        = "not_ready"
	KindUnauthorized    = "unauthorized"
	KindNotInitialized  = "not_initialized"
	KindAlreadyExists   = "already_exists"
	KindNotFound        = "not_found"
	KindLayoutOutdated  = "layout_outdated"
	KindInvalidArgument = "invalid_argument"
	KindInternal        = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrArithmeticOverflow, KindOverflow},
	{ErrArithmeticUnderflow, KindUnderflow},
	{ErrInsufficientFunds, KindInsufficient},
	{ErrInvalidProof, KindInvalidProof},
	{ErrAlreadyClaimed, KindAlreadyClaimed},
	{ErrNotReady, KindNotReady},
	{ErrUnauthorized, KindUnauthorized},
	{ErrNotInitialized, KindNotInitialized},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrNotFound, KindNotFound},
	{ErrLayoutOutdated, KindLayoutOutdated},
	{ErrInvalidArgument, KindInvalidArgument},
}

// Kind returns the taxonomy label of err, or KindInternal for errors outside
// the taxonomy. A nil error has no kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsInvariantViolation reports whether err signals ledger corruption rather
// than a rejected request.
func IsInvariantViolation(err error) bool {
	return stderrors.Is(err, ErrArithmeticOverflow) || stderrors.Is(err, ErrArithmeticUnderflow)
}
