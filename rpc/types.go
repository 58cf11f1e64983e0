package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/crypto/merkle"
)

// errInvalidParams marks request decoding failures.
var errInvalidParams = fmt.Errorf("rpc: invalid params: %w", ledgererrors.ErrInvalidArgument)

type handlerFunc func(ctx context.Context, caller crypto.Address, params json.RawMessage) (interface{}, error)

type method struct {
	call handlerFunc
	auth bool
}

func public(fn handlerFunc) method        { return method{call: fn} }
func authenticated(fn handlerFunc) method { return method{call: fn, auth: true} }

// decodeParams decodes the single parameter object into dst, rejecting
// unknown fields.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: parameter object required", errInvalidParams)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: amount required", errInvalidParams)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", errInvalidParams, value)
	}
	return amount, nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%w: %s required", errInvalidParams, field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %s: %v", errInvalidParams, field, err)
	}
	return addr, nil
}

func parseOptionalAddress(field, value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseHash(field, value string) (merkle.Hash, error) {
	var out merkle.Hash
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("%w: %s must be 32 hex-encoded bytes", errInvalidParams, field)
	}
	copy(out[:], raw)
	return out, nil
}

func formatHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// toRPCError maps the ledger failure taxonomy onto JSON-RPC error codes.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	kind := ledgererrors.Kind(err)
	code := codeServerError
	switch kind {
	case ledgererrors.KindInvalidArgument:
		code = codeInvalidParams
	case ledgererrors.KindUnauthorized:
		code = codeUnauthorized
	case ledgererrors.KindNotFound:
		code = codeNotFound
	case ledgererrors.KindAlreadyExists, ledgererrors.KindAlreadyClaimed:
		code = codeConflict
	case ledgererrors.KindInsufficient:
		code = codeInsufficient
	case ledgererrors.KindInvalidProof:
		code = codeInvalidProof
	case ledgererrors.KindNotReady:
		code = codeNotReady
	case ledgererrors.KindNotInitialized, ledgererrors.KindLayoutOutdated:
		code = codeNotInitialized
	}
	if kind == ledgererrors.KindInternal || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RPCError{Code: code, Message: "internal error", Data: map[string]string{"kind": kind}}
	}
	return &RPCError{Code: code, Message: err.Error(), Data: map[string]string{"kind": kind}}
}

// LedgerView is the wire form of the global ledger.
type LedgerView struct {
	Version              uint8  `json:"version"`
	Admin                string `json:"admin"`
	FounderWallet        string `json:"founderWallet"`
	StakeMint            string `json:"stakeMint"`
	RewardMint           string `json:"rewardMint"`
	ReserveVault         string `json:"reserveVault"`
	RewardVault          string `json:"rewardVault"`
	SupplyVault          string `json:"supplyVault"`
	StakeVault           string `json:"stakeVault"`
	FeeVault             string `json:"feeVault,omitempty"`
	FeeBps               uint16 `json:"feeBps"`
	MaxFeeBps            uint16 `json:"maxFeeBps"`
	TotalStaked          string `json:"totalStaked"`
	AccRewardPerShare    string `json:"accRewardPerShare"`
	UndistributedRewards string `json:"undistributedRewards"`
	TotalBurned          string `json:"totalBurned"`
	LastInflationTime    int64  `json:"lastInflationTime"`
}

func ledgerView(l *types.GlobalLedger) *LedgerView {
	if l == nil {
		return nil
	}
	view := &LedgerView{
		Version:              l.Version,
		Admin:                l.Admin.String(),
		FounderWallet:        l.FounderWallet.String(),
		StakeMint:            l.StakeMint,
		RewardMint:           l.RewardMint,
		ReserveVault:         l.ReserveVault.String(),
		RewardVault:          l.RewardVault.String(),
		SupplyVault:          l.SupplyVault.String(),
		StakeVault:           l.StakeVault.String(),
		FeeBps:               l.FeeBps,
		MaxFeeBps:            l.MaxFeeBps,
		TotalStaked:          formatAmount(l.TotalStaked),
		AccRewardPerShare:    l.Acc().Dec(),
		UndistributedRewards: formatAmount(l.UndistributedRewards),
		TotalBurned:          formatAmount(l.TotalBurned),
		LastInflationTime:    l.LastInflationTime,
	}
	if !l.FeeVault.IsZero() {
		view.FeeVault = l.FeeVault.String()
	}
	return view
}

// PositionView is the wire form of a staking position.
type PositionView struct {
	Owner      string `json:"owner"`
	Staked     string `json:"staked"`
	RewardDebt string `json:"rewardDebt"`
	Pending    string `json:"pending"`
}

// SettlementView reports a settled stake change.
type SettlementView struct {
	Paid              string `json:"paid"`
	Staked            string `json:"staked"`
	TotalStaked       string `json:"totalStaked"`
	RewardDebt        string `json:"rewardDebt"`
	AccRewardPerShare string `json:"accRewardPerShare"`
}

// DistributorView is the wire form of a distribution round.
type DistributorView struct {
	Round        uint64 `json:"round"`
	Root         string `json:"root"`
	Mint         string `json:"mint"`
	Vault        string `json:"vault"`
	TotalClaimed string `json:"totalClaimed"`
	CreatedAt    int64  `json:"createdAt"`
}

func distributorView(d *types.Distributor) *DistributorView {
	if d == nil {
		return nil
	}
	return &DistributorView{
		Round:        d.Round,
		Root:         formatHash(d.Root),
		Mint:         d.Mint,
		Vault:        d.Vault.String(),
		TotalClaimed: formatAmount(d.TotalClaimed),
		CreatedAt:    d.CreatedAt,
	}
}

// ClaimView is the wire form of a claim record.
type ClaimView struct {
	Round     uint64 `json:"round"`
	Index     uint64 `json:"index"`
	Claimed   bool   `json:"claimed"`
	Amount    string `json:"amount,omitempty"`
	Claimant  string `json:"claimant,omitempty"`
	ClaimedAt int64  `json:"claimedAt,omitempty"`
}

func claimView(round, index uint64, rec *types.ClaimRecord) *ClaimView {
	if rec == nil {
		return &ClaimView{Round: round, Index: index}
	}
	return &ClaimView{
		Round:     rec.Round,
		Index:     rec.Index,
		Claimed:   rec.Claimed,
		Amount:    formatAmount(rec.Amount),
		Claimant:  rec.Claimant.String(),
		ClaimedAt: rec.ClaimedAt,
	}
}

// QuoteView reports a swap.
type QuoteView struct {
	Amount string `json:"amount"`
	Cost   string `json:"cost,omitempty"`
	Burned string `json:"burned,omitempty"`
	Payout string `json:"payout,omitempty"`
}

// MintView is the wire form of a token mint.
type MintView struct {
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Supply    string `json:"supply"`
	Authority string `json:"authority"`
}

func mintView(m *types.Mint) *MintView {
	if m == nil {
		return nil
	}
	return &MintView{
		Symbol:    m.Symbol,
		Decimals:  m.Decimals,
		Supply:    formatAmount(m.Supply),
		Authority: m.Authority.String(),
	}
}

// AccountView is the wire form of a token account.
type AccountView struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance string `json:"balance"`
}

// EventView is one history record.
type EventView struct {
	ID         uint64            `json:"id"`
	Batch      string            `json:"batch"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}
