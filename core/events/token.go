package events

import (
	"excelsior/core/types"
	"excelsior/crypto"
)

const (
	// TypeTokenTransfer is emitted for every balance movement between token accounts.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
)

// TokenTransfer records a movement between two token accounts.
type TokenTransfer struct {
	Mint   string
	From   crypto.Address
	To     crypto.Address
	Amount uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"mint":   normalizeAsset(e.Mint),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// TokenSupply captures a supply delta for a mint.
type TokenSupply struct {
	Mint    string
	Account crypto.Address
	Total   uint64
	Delta   uint64
	Reason  string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"mint":  normalizeAsset(e.Mint),
		"total": formatAmount(e.Total),
		"delta": formatAmount(e.Delta),
	}
	if account := formatAddress(e.Account); account != "" {
		attrs["account"] = account
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
