package types

import "excelsior/crypto"

// Mint describes a fungible token and the authority allowed to issue it.
type Mint struct {
	Symbol    string
	Decimals  uint8
	Supply    uint64
	Authority crypto.Address
}

// TokenAccount holds a balance of a single mint for an owner.
type TokenAccount struct {
	ID      crypto.Address
	Owner   crypto.Address
	Mint    string
	Balance uint64
}
