package events

import (
	"github.com/holiman/uint256"

	"excelsior/core/types"
	"excelsior/crypto"
)

const (
	// TypeStakeOpened is emitted when a staker position is created.
	TypeStakeOpened = "staking.position.opened"
	// TypeStakeDeposited is emitted when tokens are locked into the stake vault.
	TypeStakeDeposited = "staking.staked"
	// TypeStakeWithdrawn is emitted when tokens are released from the stake vault.
	TypeStakeWithdrawn = "staking.unstaked"
	// TypeStakeRewardPaid is emitted when a settlement pays pending rewards.
	TypeStakeRewardPaid = "staking.reward.paid"
)

type StakeOpened struct {
	Owner crypto.Address
}

func (StakeOpened) EventType() string { return TypeStakeOpened }

func (e StakeOpened) Event() *types.Event {
	return &types.Event{Type: TypeStakeOpened, Attributes: map[string]string{"owner": formatAddress(e.Owner)}}
}

// StakeDeposited captures a stake increase and the resulting ledger totals.
type StakeDeposited struct {
	Owner       crypto.Address
	Amount      uint64
	Staked      uint64
	TotalStaked uint64
}

func (StakeDeposited) EventType() string { return TypeStakeDeposited }

func (e StakeDeposited) Event() *types.Event {
	return &types.Event{Type: TypeStakeDeposited, Attributes: map[string]string{
		"owner":       formatAddress(e.Owner),
		"amount":      formatAmount(e.Amount),
		"staked":      formatAmount(e.Staked),
		"totalStaked": formatAmount(e.TotalStaked),
	}}
}

// StakeWithdrawn captures a stake decrease and the resulting ledger totals.
type StakeWithdrawn struct {
	Owner       crypto.Address
	Amount      uint64
	Staked      uint64
	TotalStaked uint64
}

func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

func (e StakeWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeStakeWithdrawn, Attributes: map[string]string{
		"owner":       formatAddress(e.Owner),
		"amount":      formatAmount(e.Amount),
		"staked":      formatAmount(e.Staked),
		"totalStaked": formatAmount(e.TotalStaked),
	}}
}

// StakeRewardPaid records a lazy settlement payout.
type StakeRewardPaid struct {
	Owner             crypto.Address
	Amount            uint64
	AccRewardPerShare *uint256.Int
}

func (StakeRewardPaid) EventType() string { return TypeStakeRewardPaid }

func (e StakeRewardPaid) Event() *types.Event {
	return &types.Event{Type: TypeStakeRewardPaid, Attributes: map[string]string{
		"owner":             formatAddress(e.Owner),
		"amount":            formatAmount(e.Amount),
		"accRewardPerShare": formatUint256(e.AccRewardPerShare),
	}}
}
