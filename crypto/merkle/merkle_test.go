package merkle

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func leaf(i int) Hash {
	return crypto.Keccak256Hash([]byte{byte(i), byte(i >> 8)})
}

func leaves(n int) []Hash {
	out := make([]Hash, n)
	for i := range out {
		out[i] = leaf(i)
	}
	return out
}

func TestHashPairIsOrderIndependent(t *testing.T) {
	a, b := leaf(1), leaf(2)
	if HashPair(a, b) != HashPair(b, a) {
		t.Fatalf("sorted pair hash must not depend on argument order")
	}
	lo, hi := a, b
	if string(lo[:]) > string(hi[:]) {
		lo, hi = hi, lo
	}
	if HashPair(a, b) != crypto.Keccak256Hash(lo[:], hi[:]) {
		t.Fatalf("pair hash must place the smaller node first")
	}
}

func TestSingleLeafTree(t *testing.T) {
	tree, err := NewTree(leaves(1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tree.Root() != leaf(0) {
		t.Fatalf("single leaf root must equal the leaf")
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if len(proof) != 0 {
		t.Fatalf("expected empty proof, got %d nodes", len(proof))
	}
	if !Verify(proof, tree.Root(), leaf(0)) {
		t.Fatalf("empty proof must verify leaf == root")
	}
}

func TestOddNodeIsPromoted(t *testing.T) {
	tree, err := NewTree(leaves(3))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := HashPair(HashPair(leaf(0), leaf(1)), leaf(2))
	if tree.Root() != want {
		t.Fatalf("unexpected root for three leaves")
	}
	proof, err := tree.Proof(2)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if len(proof) != 1 || proof[0] != HashPair(leaf(0), leaf(1)) {
		t.Fatalf("promoted leaf proof should contain only the left subtree root")
	}
}

func TestEveryLeafVerifies(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 8, 13, 32, 33} {
		tree, err := NewTree(leaves(n))
		if err != nil {
			t.Fatalf("build %d: %v", n, err)
		}
		for i := 0; i < n; i++ {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("proof %d/%d: %v", i, n, err)
			}
			if !Verify(proof, tree.Root(), leaf(i)) {
				t.Fatalf("leaf %d of %d failed to verify", i, n)
			}
			if Verify(proof, tree.Root(), leaf(n+1)) {
				t.Fatalf("foreign leaf verified against leaf %d proof", i)
			}
		}
	}
}

func TestSingleByteFlipIsRejected(t *testing.T) {
	tree, err := NewTree(leaves(9))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	const index = 4
	proof, err := tree.Proof(index)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	root := tree.Root()
	target := leaf(index)

	for n := range proof {
		for b := 0; b < len(proof[n]); b++ {
			mutated := append([]Hash(nil), proof...)
			mutated[n][b] ^= 0x01
			if Verify(mutated, root, target) {
				t.Fatalf("flipped byte %d of proof node %d still verified", b, n)
			}
		}
	}
	for b := 0; b < len(target); b++ {
		flipped := target
		flipped[b] ^= 0x80
		if Verify(proof, root, flipped) {
			t.Fatalf("flipped byte %d of leaf still verified", b)
		}
		badRoot := root
		badRoot[b] ^= 0x80
		if Verify(proof, badRoot, target) {
			t.Fatalf("flipped byte %d of root still verified", b)
		}
	}
}

func TestTreeErrors(t *testing.T) {
	if _, err := NewTree(nil); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
	tree, err := NewTree(leaves(2))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := tree.Proof(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := tree.Leaf(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}
