package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	ledgererrors "excelsior/core/errors"
	"excelsior/storage"
)

// Manager reads and writes RLP-encoded ledger records through a single store
// transaction. A Manager must not outlive the transaction it wraps.
type Manager struct {
	tx storage.Tx
}

// NewManager creates a state manager operating on the provided transaction.
func NewManager(tx storage.Tx) *Manager {
	return &Manager{tx: tx}
}

var errNilManager = errors.New("state: manager unavailable")

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so record namespaces cannot collide on
// prefix boundaries.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.tx == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.tx.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.tx == nil {
		return false, errNilManager
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.tx.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether a value exists under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if m == nil || m.tx == nil {
		return false, errNilManager
	}
	return m.tx.Has(kvKey(key))
}

// maxU128 is 2^128-1, the largest accumulator value the ledger persists.
var maxU128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// encodeU128 renders v as a fixed 16-byte big-endian field.
func encodeU128(v *uint256.Int) ([16]byte, error) {
	var out [16]byte
	if v == nil {
		return out, nil
	}
	if v.Gt(maxU128) {
		return out, fmt.Errorf("state: value exceeds 128 bits: %w", ledgererrors.ErrArithmeticOverflow)
	}
	full := v.Bytes32()
	copy(out[:], full[16:])
	return out, nil
}

func decodeU128(b [16]byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b[:])
}
