package state

import (
	"fmt"

	"excelsior/core/types"
	"excelsior/crypto"
)

type storedPosition struct {
	Version    uint8
	Owner      [20]byte
	Staked     uint64
	RewardDebt [16]byte
}

// PositionGet loads the staker position owned by owner.
func (m *Manager) PositionGet(owner crypto.Address) (*types.Position, bool, error) {
	var stored storedPosition
	ok, err := m.KVGet(positionKey(owner), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load position: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &types.Position{
		Version:    stored.Version,
		Owner:      stored.Owner,
		Staked:     stored.Staked,
		RewardDebt: decodeU128(stored.RewardDebt),
	}, true, nil
}

// PositionPut persists a staker position.
func (m *Manager) PositionPut(pos *types.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	debt, err := encodeU128(pos.RewardDebt)
	if err != nil {
		return err
	}
	version := pos.Version
	if version == 0 {
		version = types.PositionLayoutVersion
	}
	return m.KVPut(positionKey(pos.Owner), &storedPosition{
		Version:    version,
		Owner:      pos.Owner,
		Staked:     pos.Staked,
		RewardDebt: debt,
	})
}
