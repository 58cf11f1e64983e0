package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"excelsior/crypto"
	"excelsior/native/treasury"
)

type initializeParams struct {
	FeeBps        uint16 `json:"feeBps"`
	FounderWallet string `json:"founderWallet,omitempty"`
	StakeMint     string `json:"stakeMint,omitempty"`
	RewardMint    string `json:"rewardMint,omitempty"`
}

func (s *Server) handleLedgerInitialize(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params initializeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	founder, err := parseOptionalAddress("founderWallet", params.FounderWallet)
	if err != nil {
		return nil, err
	}
	ledger, err := s.node.Initialize(ctx, caller, treasury.InitParams{
		FeeBps:        params.FeeBps,
		FounderWallet: founder,
		StakeMint:     params.StakeMint,
		RewardMint:    params.RewardMint,
	})
	if err != nil {
		return nil, err
	}
	return ledgerView(ledger), nil
}

type upgradeConfigParams struct {
	ReserveVault string `json:"reserveVault,omitempty"`
	RewardVault  string `json:"rewardVault,omitempty"`
	SupplyVault  string `json:"supplyVault,omitempty"`
}

func (s *Server) handleLedgerUpgradeConfig(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params upgradeConfigParams
	if len(raw) > 0 {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	var vaults treasury.Vaults
	var err error
	if vaults.Reserve, err = parseOptionalAddress("reserveVault", params.ReserveVault); err != nil {
		return nil, err
	}
	if vaults.Reward, err = parseOptionalAddress("rewardVault", params.RewardVault); err != nil {
		return nil, err
	}
	if vaults.Supply, err = parseOptionalAddress("supplyVault", params.SupplyVault); err != nil {
		return nil, err
	}
	ledger, err := s.node.UpgradeConfig(ctx, caller, vaults)
	if err != nil {
		return nil, err
	}
	return ledgerView(ledger), nil
}

type setFeeParams struct {
	FeeBps *uint16 `json:"feeBps"`
}

func (s *Server) handleLedgerSetFee(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params setFeeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.FeeBps == nil {
		return nil, fmt.Errorf("%w: feeBps required", errInvalidParams)
	}
	if err := s.node.SetFee(ctx, caller, *params.FeeBps); err != nil {
		return nil, err
	}
	return map[string]uint16{"feeBps": *params.FeeBps}, nil
}

func (s *Server) handleLedgerGet(ctx context.Context, _ crypto.Address, _ json.RawMessage) (interface{}, error) {
	ledger, err := s.node.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	return ledgerView(ledger), nil
}

type amountParams struct {
	Amount string `json:"amount"`
}

func (s *Server) handleIncomeDistribute(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	res, err := s.node.DistributeIncome(ctx, caller, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"reserve":           formatAmount(res.Reserve),
		"reward":            formatAmount(res.Reward),
		"routing":           res.Routing,
		"accDelta":          res.AccDelta.Dec(),
		"accRewardPerShare": res.AccRewardPerShare.Dec(),
		"undistributed":     formatAmount(res.Undistributed),
	}, nil
}

func (s *Server) handleFeesHarvest(ctx context.Context, caller crypto.Address, _ json.RawMessage) (interface{}, error) {
	res, err := s.node.HarvestFees(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"total":   formatAmount(res.Total),
		"founder": formatAmount(res.Founder),
		"reserve": formatAmount(res.Reserve),
	}, nil
}

type fundVaultParams struct {
	Vault  string `json:"vault"`
	Amount string `json:"amount"`
}

func (s *Server) handleTreasuryFundVault(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params fundVaultParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	vault := strings.ToLower(strings.TrimSpace(params.Vault))
	if vault == "" {
		return nil, fmt.Errorf("%w: vault required", errInvalidParams)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.FundVault(ctx, caller, vault, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"vault":   vault,
		"balance": formatAmount(balance),
	}, nil
}

func (s *Server) handleInflationTrigger(ctx context.Context, caller crypto.Address, _ json.RawMessage) (interface{}, error) {
	res, err := s.node.TriggerScheduledMint(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"amount":    formatAmount(res.Amount),
		"supply":    formatAmount(res.Supply),
		"timestamp": res.Timestamp,
	}, nil
}
