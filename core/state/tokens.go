package state

import (
	"fmt"
	"strings"

	"excelsior/core/types"
	"excelsior/crypto"
)

// MintGet loads mint metadata by symbol.
func (m *Manager) MintGet(symbol string) (*types.Mint, bool, error) {
	var stored types.Mint
	ok, err := m.KVGet(mintKey(strings.ToUpper(symbol)), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load mint: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &stored, true, nil
}

// MintPut persists mint metadata.
func (m *Manager) MintPut(mint *types.Mint) error {
	if mint == nil || strings.TrimSpace(mint.Symbol) == "" {
		return fmt.Errorf("state: mint symbol required")
	}
	return m.KVPut(mintKey(strings.ToUpper(mint.Symbol)), mint)
}

// TokenAccountGet loads a token account by id.
func (m *Manager) TokenAccountGet(id crypto.Address) (*types.TokenAccount, bool, error) {
	var stored types.TokenAccount
	ok, err := m.KVGet(tokenAccountKey(id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load token account: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &stored, true, nil
}

// TokenAccountPut persists a token account.
func (m *Manager) TokenAccountPut(acct *types.TokenAccount) error {
	if acct == nil {
		return fmt.Errorf("state: nil token account")
	}
	return m.KVPut(tokenAccountKey(acct.ID), acct)
}
