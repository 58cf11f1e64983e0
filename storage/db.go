package storage

import "errors"

var (
	// ErrReadOnly is returned when a write is attempted inside a View.
	ErrReadOnly = errors.New("storage: read-only transaction")
	// ErrClosed is returned when the database handle has been closed.
	ErrClosed = errors.New("storage: database closed")
)

// Tx is the view of the store available inside one atomic unit. Get returns a
// nil slice and no error when the key is absent.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Database is a transactional key-value store. Update runs fn inside a single
// write transaction that commits only when fn returns nil; writers are
// serialised by the backend. View runs fn against a consistent read-only
// snapshot.
type Database interface {
	Update(fn func(Tx) error) error
	View(fn func(Tx) error) error
	Close() error
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
