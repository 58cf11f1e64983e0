package rpc

import (
	"context"
	"encoding/json"

	"excelsior/crypto"
	"excelsior/crypto/merkle"
)

type seedParams struct {
	Round uint64 `json:"round"`
	Root  string `json:"root"`
	Mint  string `json:"mint,omitempty"`
}

func (s *Server) handleDistributorSeed(ctx context.Context, caller crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params seedParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	root, err := parseHash("root", params.Root)
	if err != nil {
		return nil, err
	}
	d, err := s.node.SeedDistributor(ctx, caller, params.Round, root, params.Mint)
	if err != nil {
		return nil, err
	}
	return distributorView(d), nil
}

type claimParams struct {
	Round     uint64   `json:"round"`
	Index     uint64   `json:"index"`
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Proof     []string `json:"proof"`
}

// handleDistributorClaim is open to any caller: the Merkle proof is the
// authorization and payment always goes to the leaf's recipient.
func (s *Server) handleDistributorClaim(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params claimParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", params.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	proof := make([]merkle.Hash, 0, len(params.Proof))
	for _, p := range params.Proof {
		h, err := parseHash("proof", p)
		if err != nil {
			return nil, err
		}
		proof = append(proof, h)
	}
	rec, err := s.node.Claim(ctx, params.Round, params.Index, recipient, amount, proof)
	if err != nil {
		return nil, err
	}
	return claimView(params.Round, params.Index, rec), nil
}

type roundParams struct {
	Round uint64 `json:"round"`
}

func (s *Server) handleDistributorGet(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params roundParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	d, err := s.node.Distributor(ctx, params.Round)
	if err != nil {
		return nil, err
	}
	return distributorView(d), nil
}

type claimStatusParams struct {
	Round uint64 `json:"round"`
	Index uint64 `json:"index"`
}

func (s *Server) handleDistributorClaimStatus(ctx context.Context, _ crypto.Address, raw json.RawMessage) (interface{}, error) {
	var params claimStatusParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	rec, err := s.node.ClaimStatus(ctx, params.Round, params.Index)
	if err != nil {
		return nil, err
	}
	return claimView(params.Round, params.Index, rec), nil
}
