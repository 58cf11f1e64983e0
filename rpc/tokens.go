package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ledgererrors "excelsior/core/errors"
	"excelsior/crypto"
	"excelsior/services/history"
)

// errHistoryDisabled is returned by history_events when no store is wired.
var errHistoryDisabled = fmt.Errorf("rpc: event history disabled: %w", ledgererrors.ErrNotReady)

type createMintParams struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleTokenCreateMint(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params createMintParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	mint, err := s.node.CreateMint(ctx, caller, strings.TrimSpace(params.Symbol), params.Decimals)
	if err != nil {
		return nil, err
	}
	return mintView(mint), nil
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleTokenOpenAccount(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params symbolParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	acct, err := s.node.OpenTokenAccount(ctx, caller, strings.TrimSpace(params.Symbol))
	if err != nil {
		return nil, err
	}
	return &AccountView{
		ID:      acct.ID.String(),
		Owner:   acct.Owner.String(),
		Mint:    acct.Mint,
		Balance: formatAmount(acct.Balance),
	}, nil
}

type tokenMoveParams struct {
	To     string `json:"to"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

func (p tokenMoveParams) parse() (crypto.Address, string, uint64, error) {
	to, err := parseAddress("to", p.To)
	if err != nil {
		return crypto.Address{}, "", 0, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return crypto.Address{}, "", 0, err
	}
	return to, strings.TrimSpace(p.Symbol), amount, nil
}

func (s *Server) handleTokenMintTo(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params tokenMoveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	to, symbol, amount, err := params.parse()
	if err != nil {
		return nil, err
	}
	if err := s.node.MintTo(ctx, caller, to, symbol, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleTokenTransfer(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params tokenMoveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	to, symbol, amount, err := params.parse()
	if err != nil {
		return nil, err
	}
	receipt, err := s.node.Transfer(ctx, caller, to, symbol, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"amount":   formatAmount(receipt.Amount),
		"fee":      formatAmount(receipt.Fee),
		"received": formatAmount(receipt.Received),
	}, nil
}

type balanceParams struct {
	Owner  string `json:"owner"`
	Symbol string `json:"symbol"`
}

func (s *Server) handleTokenBalance(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params balanceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	symbol := strings.TrimSpace(params.Symbol)
	if _, err := s.node.Mint(ctx, symbol); err != nil {
		return nil, err
	}
	balance, err := s.node.Balance(ctx, owner, symbol)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"owner":   owner.String(),
		"symbol":  symbol,
		"balance": formatAmount(balance),
	}, nil
}

type historyParams struct {
	Type    string `json:"type,omitempty"`
	Batch   string `json:"batch,omitempty"`
	Account string `json:"account,omitempty"`
	AfterID uint64 `json:"afterId,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) handleHistoryEvents(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	var params historyParams
	if len(raw) > 0 {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", errInvalidParams)
	}
	if params.Account != "" {
		if _, err := parseAddress("account", params.Account); err != nil {
			return nil, err
		}
	}
	records, err := s.history.Query(ctx, history.Filter{
		Type:    params.Type,
		Batch:   params.Batch,
		Account: params.Account,
		AfterID: params.AfterID,
		Limit:   params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("rpc: query history: %w", err)
	}
	out := make([]EventView, 0, len(records))
	for _, rec := range records {
		out = append(out, EventView{
			ID:         rec.ID,
			Batch:      rec.Batch,
			Type:       rec.Type,
			Attributes: rec.Fields(),
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	return out, nil
}
