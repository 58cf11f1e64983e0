package rpc

import (
	"context"
	"encoding/json"

	"excelsior/crypto"
	"excelsior/native/staking"
	"excelsior/native/swap"
)

func settlementView(s *staking.Settlement) *SettlementView {
	return &SettlementView{
		Paid:              formatAmount(s.Paid),
		Staked:            formatAmount(s.Staked),
		TotalStaked:       formatAmount(s.TotalStaked),
		RewardDebt:        s.RewardDebt.Dec(),
		AccRewardPerShare: s.AccRewardPerShare.Dec(),
	}
}

func (s *Server) handleStakeOpen(ctx context.Context, caller crypto.Address, _ json.RawMessage) (interface{}, error) {
	pos, err := s.node.OpenPosition(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &PositionView{
		Owner:      pos.Owner.String(),
		Staked:     formatAmount(pos.Staked),
		RewardDebt: pos.Debt().Dec(),
		Pending:    "0",
	}, nil
}

func (s *Server) handleStakeDeposit(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	return s.stakeChange(ctx, raw, func(amount uint64) (*staking.Settlement, error) {
		return s.node.Stake(ctx, caller, amount)
	})
}

func (s *Server) handleStakeWithdraw(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	return s.stakeChange(ctx, raw, func(amount uint64) (*staking.Settlement, error) {
		return s.node.Unstake(ctx, caller, amount)
	})
}

func (s *Server) stakeChange(_ context.Context, raw json.RawMessage, apply func(uint64) (*staking.Settlement, error)) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	settlement, err := apply(amount)
	if err != nil {
		return nil, err
	}
	return settlementView(settlement), nil
}

func (s *Server) handleStakeHarvest(ctx context.Context, caller crypto.Address, _ json.RawMessage) (interface{}, error) {
	settlement, err := s.node.Harvest(ctx, caller)
	if err != nil {
		return nil, err
	}
	return settlementView(settlement), nil
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleStakePosition(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params ownerParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	pos, err := s.node.Position(ctx, owner)
	if err != nil {
		return nil, err
	}
	pending, err := s.node.PendingReward(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &PositionView{
		Owner:      pos.Owner.String(),
		Staked:     formatAmount(pos.Staked),
		RewardDebt: pos.Debt().Dec(),
		Pending:    formatAmount(pending),
	}, nil
}

func quoteView(q *swap.Quote) *QuoteView {
	view := &QuoteView{Amount: formatAmount(q.Amount)}
	if q.Cost > 0 {
		view.Cost = formatAmount(q.Cost)
		view.Burned = formatAmount(q.Burned)
	}
	if q.Payout > 0 {
		view.Payout = formatAmount(q.Payout)
	}
	return view
}

func (s *Server) handleSwapBuy(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	quote, err := s.node.Buy(ctx, caller, amount)
	if err != nil {
		return nil, err
	}
	return quoteView(quote), nil
}

func (s *Server) handleSwapRedeem(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	quote, err := s.node.Redeem(ctx, caller, amount)
	if err != nil {
		return nil, err
	}
	return quoteView(quote), nil
}
