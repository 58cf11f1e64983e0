package events

import (
	"encoding/hex"
	"strconv"

	"excelsior/core/types"
	"excelsior/crypto"
)

const (
	// TypeDistributorSeeded is emitted when a distribution round is created.
	TypeDistributorSeeded = "distributor.seeded"
	// TypeDistributorClaimed is emitted for every successful claim.
	TypeDistributorClaimed = "distributor.claimed"
)

type DistributorSeeded struct {
	Round uint64
	Root  [32]byte
	Mint  string
	Vault crypto.Address
}

func (DistributorSeeded) EventType() string { return TypeDistributorSeeded }

func (e DistributorSeeded) Event() *types.Event {
	return &types.Event{Type: TypeDistributorSeeded, Attributes: map[string]string{
		"round": strconv.FormatUint(e.Round, 10),
		"root":  "0x" + hex.EncodeToString(e.Root[:]),
		"mint":  normalizeAsset(e.Mint),
		"vault": formatAddress(e.Vault),
	}}
}

type DistributorClaimed struct {
	Round        uint64
	Index        uint64
	Recipient    crypto.Address
	Amount       uint64
	TotalClaimed uint64
}

func (DistributorClaimed) EventType() string { return TypeDistributorClaimed }

func (e DistributorClaimed) Event() *types.Event {
	return &types.Event{Type: TypeDistributorClaimed, Attributes: map[string]string{
		"round":        strconv.FormatUint(e.Round, 10),
		"index":        strconv.FormatUint(e.Index, 10),
		"recipient":    formatAddress(e.Recipient),
		"amount":       formatAmount(e.Amount),
		"totalClaimed": formatAmount(e.TotalClaimed),
	}}
}
