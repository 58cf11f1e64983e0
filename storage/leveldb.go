package storage

import (
	"errors"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB is a persistent key-value store using LevelDB. Update maps onto a
// LevelDB transaction, which the library keeps exclusive: a second Update
// blocks until the first commits or is discarded.
type LevelDB struct {
	db     *leveldb.DB
	closed atomic.Bool
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB returns a LevelDB instance backed by in-memory storage. It is used by
// tests and by nodes configured with the memory backend.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// Memory storage cannot fail to open.
		panic(err)
	}
	return &LevelDB{db: db}
}

// Update executes fn inside an exclusive LevelDB transaction.
func (l *LevelDB) Update(fn func(Tx) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return err
	}
	// Discard is a no-op once the transaction has been committed.
	defer tr.Discard()
	if err := fn(levelTx{tr: tr}); err != nil {
		return err
	}
	return tr.Commit()
}

// View executes fn against a point-in-time snapshot.
func (l *LevelDB) View(fn func(Tx) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(snapshotTx{snap: snap})
}

// Close closes the database connection.
func (l *LevelDB) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.db.Close()
}

type levelTx struct {
	tr *leveldb.Transaction
}

func (t levelTx) Get(key []byte) ([]byte, error) {
	value, err := t.tr.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(value), nil
}

func (t levelTx) Has(key []byte) (bool, error) { return t.tr.Has(key, nil) }

func (t levelTx) Put(key []byte, value []byte) error { return t.tr.Put(key, value, nil) }

func (t levelTx) Delete(key []byte) error { return t.tr.Delete(key, nil) }

type snapshotTx struct {
	snap *leveldb.Snapshot
}

func (t snapshotTx) Get(key []byte) ([]byte, error) {
	value, err := t.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(value), nil
}

func (t snapshotTx) Has(key []byte) (bool, error) { return t.snap.Has(key, nil) }

func (snapshotTx) Put([]byte, []byte) error { return ErrReadOnly }

func (snapshotTx) Delete([]byte) error { return ErrReadOnly }
