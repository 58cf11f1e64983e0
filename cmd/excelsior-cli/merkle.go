package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"excelsior/crypto"
	"excelsior/crypto/merkle"
	"excelsior/native/distributor"
)

// allocationFile is the operator-authored input of a distribution round.
// Leaf indexes follow list order.
type allocationFile struct {
	Round       uint64       `yaml:"round"`
	Mint        string       `yaml:"mint"`
	Allocations []allocation `yaml:"allocations"`
}

type allocation struct {
	Recipient string `yaml:"recipient"`
	Amount    uint64 `yaml:"amount"`
}

// claimSet is the published output: the root to seed and one proof per leaf.
type claimSet struct {
	Round  uint64       `json:"round"`
	Mint   string       `json:"mint,omitempty"`
	Root   string       `json:"root"`
	Total  string       `json:"total"`
	Claims []claimEntry `json:"claims"`
}

type claimEntry struct {
	Index     uint64   `json:"index"`
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Proof     []string `json:"proof"`
}

func newMerkleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merkle",
		Short: "Build and check distribution trees",
	}
	cmd.AddCommand(newMerkleBuildCmd(), newMerkleVerifyCmd())
	return cmd
}

func newMerkleBuildCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute the root and proofs of an allocation file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return errors.New("--in is required")
			}
			raw, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var file allocationFile
			if err := yaml.Unmarshal(raw, &file); err != nil {
				return fmt.Errorf("parse %s: %w", in, err)
			}
			set, err := buildClaimSet(file)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "YAML allocation file")
	cmd.Flags().StringVar(&out, "out", "", "Write the claim set here instead of stdout")
	return cmd
}

func buildClaimSet(file allocationFile) (*claimSet, error) {
	if len(file.Allocations) == 0 {
		return nil, errors.New("allocation file lists no recipients")
	}
	leaves := make([]merkle.Hash, len(file.Allocations))
	recipients := make([]crypto.Address, len(file.Allocations))
	var total uint64
	for i, a := range file.Allocations {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(a.Recipient))
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		if a.Amount == 0 {
			return nil, fmt.Errorf("allocation %d: amount must be positive", i)
		}
		if total+a.Amount < total {
			return nil, fmt.Errorf("allocation %d: total overflows", i)
		}
		total += a.Amount
		recipients[i] = addr
		leaves[i] = distributor.LeafHash(uint64(i), addr, a.Amount)
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}
	set := &claimSet{
		Round:  file.Round,
		Mint:   file.Mint,
		Root:   encodeHash(tree.Root()),
		Total:  fmt.Sprintf("%d", total),
		Claims: make([]claimEntry, len(leaves)),
	}
	for i := range leaves {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		encoded := make([]string, len(proof))
		for j, h := range proof {
			encoded[j] = encodeHash(h)
		}
		set.Claims[i] = claimEntry{
			Index:     uint64(i),
			Recipient: recipients[i].String(),
			Amount:    fmt.Sprintf("%d", file.Allocations[i].Amount),
			Proof:     encoded,
		}
	}
	return set, nil
}

func newMerkleVerifyCmd() *cobra.Command {
	var (
		root      string
		index     uint64
		recipient string
		amount    uint64
		proof     []string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a claim against a distribution root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rootHash, err := decodeHash(root)
			if err != nil {
				return fmt.Errorf("--root: %w", err)
			}
			addr, err := crypto.DecodeAddress(recipient)
			if err != nil {
				return fmt.Errorf("--recipient: %w", err)
			}
			path := make([]merkle.Hash, 0, len(proof))
			for _, p := range proof {
				h, err := decodeHash(p)
				if err != nil {
					return fmt.Errorf("--proof: %w", err)
				}
				path = append(path, h)
			}
			if !merkle.Verify(path, rootHash, distributor.LeafHash(index, addr, amount)) {
				return errors.New("proof does not match root")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Distribution root (hex)")
	cmd.Flags().Uint64Var(&index, "index", 0, "Leaf index")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Claimed amount")
	cmd.Flags().StringSliceVar(&proof, "proof", nil, "Comma separated proof hashes (hex)")
	return cmd
}

func encodeHash(h merkle.Hash) string {
	return "0x" + hex.EncodeToString(h[:])
}

func decodeHash(s string) (merkle.Hash, error) {
	var out merkle.Hash
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
