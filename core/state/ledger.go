package state

import (
	"fmt"

	"excelsior/core/types"
)

// storedLedger is the RLP layout of the global ledger. Fields tagged optional
// were appended by layout v2; v1 records decode with them zeroed.
type storedLedger struct {
	Version           uint8
	Admin             [20]byte
	FounderWallet     [20]byte
	StakeMint         string
	RewardMint        string
	ReserveVault      [20]byte
	RewardVault       [20]byte
	SupplyVault       [20]byte
	StakeVault        [20]byte
	FeeBps            uint16
	MaxFeeBps         uint16
	TotalStaked       uint64
	AccRewardPerShare [16]byte
	TotalBurned       uint64
	LastInflationTime uint64

	FeeVault             [20]byte `rlp:"optional"`
	UndistributedRewards uint64   `rlp:"optional"`
}

func newStoredLedger(l *types.GlobalLedger) (*storedLedger, error) {
	acc, err := encodeU128(l.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	ts := l.LastInflationTime
	if ts < 0 {
		ts = 0
	}
	stored := &storedLedger{
		Version:           l.Version,
		Admin:             l.Admin,
		FounderWallet:     l.FounderWallet,
		StakeMint:         l.StakeMint,
		RewardMint:        l.RewardMint,
		ReserveVault:      l.ReserveVault,
		RewardVault:       l.RewardVault,
		SupplyVault:       l.SupplyVault,
		StakeVault:        l.StakeVault,
		FeeBps:            l.FeeBps,
		MaxFeeBps:         l.MaxFeeBps,
		TotalStaked:       l.TotalStaked,
		AccRewardPerShare: acc,
		TotalBurned:       l.TotalBurned,
		LastInflationTime: uint64(ts),
	}
	if l.Version >= types.LedgerLayoutVersion {
		stored.FeeVault = l.FeeVault
		stored.UndistributedRewards = l.UndistributedRewards
	}
	return stored, nil
}

func (s *storedLedger) toLedger() *types.GlobalLedger {
	return &types.GlobalLedger{
		Version:              s.Version,
		Admin:                s.Admin,
		FounderWallet:        s.FounderWallet,
		StakeMint:            s.StakeMint,
		RewardMint:           s.RewardMint,
		ReserveVault:         s.ReserveVault,
		RewardVault:          s.RewardVault,
		SupplyVault:          s.SupplyVault,
		StakeVault:           s.StakeVault,
		FeeVault:             s.FeeVault,
		FeeBps:               s.FeeBps,
		MaxFeeBps:            s.MaxFeeBps,
		TotalStaked:          s.TotalStaked,
		AccRewardPerShare:    decodeU128(s.AccRewardPerShare),
		UndistributedRewards: s.UndistributedRewards,
		TotalBurned:          s.TotalBurned,
		LastInflationTime:    int64(s.LastInflationTime),
	}
}

// LedgerGet loads the global ledger. The returned record carries the layout
// version it was stored with.
func (m *Manager) LedgerGet() (*types.GlobalLedger, bool, error) {
	var stored storedLedger
	ok, err := m.KVGet(ledgerGlobalKey, &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load ledger: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toLedger(), true, nil
}

// LedgerPut persists the global ledger using the layout named by its Version.
// Writing a v1 record drops the fields v1 cannot hold.
func (m *Manager) LedgerPut(ledger *types.GlobalLedger) error {
	if ledger == nil {
		return fmt.Errorf("state: nil ledger")
	}
	if ledger.Version == 0 || ledger.Version > types.LedgerLayoutVersion {
		return fmt.Errorf("state: unsupported ledger layout %d", ledger.Version)
	}
	stored, err := newStoredLedger(ledger)
	if err != nil {
		return err
	}
	return m.KVPut(ledgerGlobalKey, stored)
}
