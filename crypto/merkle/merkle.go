// Package merkle builds and verifies keccak256 Merkle trees whose internal
// nodes hash the two children in ascending byte order. Trees and proofs are
// interchangeable with merkletreejs configured with sortPairs.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hash is a 32-byte keccak256 digest.
type Hash = [32]byte

var (
	// ErrEmptyTree is returned when a tree is built from no leaves.
	ErrEmptyTree = errors.New("merkle: no leaves")
	// ErrIndexOutOfRange is returned when a proof is requested for a missing leaf.
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
)

// HashPair combines two nodes, hashing the lexicographically smaller one
// first. Equal nodes hash a first.
func HashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return crypto.Keccak256Hash(a[:], b[:])
	}
	return crypto.Keccak256Hash(b[:], a[:])
}

// Verify folds proof into leaf and reports whether the result equals root.
// An empty proof accepts only leaf == root.
func Verify(proof []Hash, root, leaf Hash) bool {
	computed := leaf
	for _, node := range proof {
		computed = HashPair(computed, node)
	}
	return computed == root
}

// Tree keeps every layer so proofs can be generated for any leaf.
type Tree struct {
	layers [][]Hash
}

// NewTree builds a tree over already-hashed leaves, in the order given. An
// unpaired trailing node is carried up to the next layer unchanged.
func NewTree(leaves []Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	base := make([]Hash, len(leaves))
	copy(base, leaves)
	layers := [][]Hash{base}
	for current := base; len(current) > 1; {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, HashPair(current[i], current[i+1]))
		}
		layers = append(layers, next)
		current = next
	}
	return &Tree{layers: layers}, nil
}

// Root returns the tree root. A single-leaf tree's root is the leaf itself.
func (t *Tree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.layers[0]) }

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index int) (Hash, error) {
	if index < 0 || index >= t.Len() {
		return Hash{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return t.layers[0][index], nil
}

// Proof returns the sibling path from the leaf at index to the root. Layers in
// which the node had no sibling contribute nothing.
func (t *Tree) Proof(index int) ([]Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	proof := make([]Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index + 1
		if index%2 == 1 {
			sibling = index - 1
		}
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, nil
}
