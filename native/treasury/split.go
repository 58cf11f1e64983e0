package treasury

import (
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/native/common"
)

// ErrInvalidShare is returned when a basis point share exceeds 10000.
var ErrInvalidShare = fmt.Errorf("treasury: share exceeds %d bps: %w", common.BasisPoints, ledgererrors.ErrInvalidArgument)

// Split divides income into the reserve share, floor(income*reserveBps/10000),
// and the staker reward share, which receives the remainder including any
// rounding dust.
func Split(income uint64, reserveBps uint32) (reserve, reward uint64, err error) {
	if reserveBps > common.BasisPoints {
		return 0, 0, ErrInvalidShare
	}
	reserve, err = common.ApplyBps(income, reserveBps)
	if err != nil {
		return 0, 0, err
	}
	return reserve, income - reserve, nil
}
