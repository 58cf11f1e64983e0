package types

import (
	"github.com/holiman/uint256"

	"excelsior/crypto"
)

const (
	// LedgerLayoutV1 is the original ledger layout without a fee vault or
	// carried rewards.
	LedgerLayoutV1 uint8 = 1
	// LedgerLayoutVersion is the layout written by this binary.
	LedgerLayoutVersion uint8 = 2

	// PositionLayoutVersion is the layout written for staker positions.
	PositionLayoutVersion uint8 = 1
	// DistributorLayoutVersion is the layout written for distribution rounds.
	DistributorLayoutVersion uint8 = 1
)

// GlobalLedger is the singleton record holding protocol configuration and the
// reward accumulator. Vault references are token account ids owned by the
// ledger's derived authority.
type GlobalLedger struct {
	Version uint8

	Admin         crypto.Address
	FounderWallet crypto.Address
	StakeMint     string
	RewardMint    string

	ReserveVault crypto.Address
	RewardVault  crypto.Address
	SupplyVault  crypto.Address
	StakeVault   crypto.Address
	FeeVault     crypto.Address

	FeeBps    uint16
	MaxFeeBps uint16

	TotalStaked          uint64
	AccRewardPerShare    *uint256.Int
	UndistributedRewards uint64
	// TotalBurned counts reward mint units burned by buys. Stake tokens
	// burned on redeem show up in the stake mint supply instead.
	TotalBurned       uint64
	LastInflationTime int64
}

// Acc returns the accumulator, treating an unset value as zero.
func (l *GlobalLedger) Acc() *uint256.Int {
	if l == nil || l.AccRewardPerShare == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(l.AccRewardPerShare)
}

// Clone returns a deep copy of the ledger.
func (l *GlobalLedger) Clone() *GlobalLedger {
	if l == nil {
		return nil
	}
	out := *l
	out.AccRewardPerShare = l.Acc()
	return &out
}

// Position is a staker's share of the reward ledger.
type Position struct {
	Version    uint8
	Owner      crypto.Address
	Staked     uint64
	RewardDebt *uint256.Int
}

// Debt returns the reward debt, treating an unset value as zero.
func (p *Position) Debt() *uint256.Int {
	if p == nil || p.RewardDebt == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(p.RewardDebt)
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	out.RewardDebt = p.Debt()
	return &out
}

// Distributor is one Merkle distribution round. Only TotalClaimed changes
// after the round is seeded.
type Distributor struct {
	Version      uint8
	Round        uint64
	Root         [32]byte
	Mint         string
	Vault        crypto.Address
	TotalClaimed uint64
	CreatedAt    int64
}

// ClaimRecord marks a distribution index as paid. Its existence is the replay
// guard; it is never modified once written.
type ClaimRecord struct {
	Round     uint64
	Index     uint64
	Claimed   bool
	Amount    uint64
	Claimant  crypto.Address
	ClaimedAt int64
}
