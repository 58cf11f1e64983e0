package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

// BoltDB persists state in a single BoltDB bucket. Bolt allows one writer at a
// time, so Update calls are serialised by the library.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (and initialises) the BoltDB file at path.
func NewBoltDB(path string, options *bolt.Options) (*BoltDB, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

// Update executes fn inside a read-write Bolt transaction.
func (b *BoltDB) Update(fn func(Tx) error) error {
	if b == nil || b.db == nil {
		return ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{bucket: tx.Bucket(bucketState), writable: true})
	})
}

// View executes fn inside a read-only Bolt transaction.
func (b *BoltDB) View(fn func(Tx) error) error {
	if b == nil || b.db == nil {
		return ErrClosed
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(boltTx{bucket: tx.Bucket(bucketState)})
	})
}

// Close releases the underlying Bolt database handle.
func (b *BoltDB) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

type boltTx struct {
	bucket   *bolt.Bucket
	writable bool
}

// Get copies the value out because Bolt memory is only valid for the lifetime
// of the transaction.
func (t boltTx) Get(key []byte) ([]byte, error) {
	return copyBytes(t.bucket.Get(key)), nil
}

func (t boltTx) Has(key []byte) (bool, error) {
	return t.bucket.Get(key) != nil, nil
}

func (t boltTx) Put(key []byte, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.bucket.Put(key, value)
}

func (t boltTx) Delete(key []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.bucket.Delete(key)
}
