package state

import (
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/types"
)

type storedDistributor struct {
	Version      uint8
	Round        uint64
	Root         [32]byte
	Mint         string
	Vault        [20]byte
	TotalClaimed uint64
	CreatedAt    uint64
}

type storedClaimRecord struct {
	Round     uint64
	Index     uint64
	Claimed   bool
	Amount    uint64
	Claimant  [20]byte
	ClaimedAt uint64
}

func nonNegative(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// DistributorGet loads the distribution round.
func (m *Manager) DistributorGet(round uint64) (*types.Distributor, bool, error) {
	var stored storedDistributor
	ok, err := m.KVGet(distributorKey(round), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load distributor: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &types.Distributor{
		Version:      stored.Version,
		Round:        stored.Round,
		Root:         stored.Root,
		Mint:         stored.Mint,
		Vault:        stored.Vault,
		TotalClaimed: stored.TotalClaimed,
		CreatedAt:    int64(stored.CreatedAt),
	}, true, nil
}

// DistributorPut persists the distribution round.
func (m *Manager) DistributorPut(d *types.Distributor) error {
	if d == nil {
		return fmt.Errorf("state: nil distributor")
	}
	version := d.Version
	if version == 0 {
		version = types.DistributorLayoutVersion
	}
	return m.KVPut(distributorKey(d.Round), &storedDistributor{
		Version:      version,
		Round:        d.Round,
		Root:         d.Root,
		Mint:         d.Mint,
		Vault:        d.Vault,
		TotalClaimed: d.TotalClaimed,
		CreatedAt:    nonNegative(d.CreatedAt),
	})
}

// ClaimRecordGet loads the claim record for (round, index).
func (m *Manager) ClaimRecordGet(round, index uint64) (*types.ClaimRecord, bool, error) {
	var stored storedClaimRecord
	ok, err := m.KVGet(claimRecordKey(round, index), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load claim record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &types.ClaimRecord{
		Round:     stored.Round,
		Index:     stored.Index,
		Claimed:   stored.Claimed,
		Amount:    stored.Amount,
		Claimant:  stored.Claimant,
		ClaimedAt: int64(stored.ClaimedAt),
	}, true, nil
}

// ClaimRecordCreate writes the claim record only when none exists for
// (round, index). An existing record yields ErrAlreadyClaimed; the caller's
// transaction serialises concurrent creators.
func (m *Manager) ClaimRecordCreate(rec *types.ClaimRecord) error {
	if rec == nil {
		return fmt.Errorf("state: nil claim record")
	}
	key := claimRecordKey(rec.Round, rec.Index)
	exists, err := m.KVHas(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("state: round %d index %d: %w", rec.Round, rec.Index, ledgererrors.ErrAlreadyClaimed)
	}
	return m.KVPut(key, &storedClaimRecord{
		Round:     rec.Round,
		Index:     rec.Index,
		Claimed:   rec.Claimed,
		Amount:    rec.Amount,
		Claimant:  rec.Claimant,
		ClaimedAt: nonNegative(rec.ClaimedAt),
	})
}
