package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("state")

// BoltDB stores every key in a single bbolt bucket. Batches are applied inside
// one bbolt read-write transaction so they commit or fail as a unit.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates) a bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, value)
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(stateBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(stateBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(key)
	})
}

func (b *BoltDB) Write(batch *leveldb.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		replay := &boltReplay{bucket: tx.Bucket(stateBucket)}
		if err := batch.Replay(replay); err != nil {
			return err
		}
		return replay.err
	})
}

func (b *BoltDB) Close() {
	b.db.Close()
}

type boltReplay struct {
	bucket *bolt.Bucket
	err    error
}

func (r *boltReplay) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.bucket.Put(key, value)
}

func (r *boltReplay) Delete(key []byte) {
	if r.err != nil {
		return
	}
	r.err = r.bucket.Delete(key)
}

// Open selects a backend by name. Supported backends are "leveldb", "bolt" and
// "memory"; the path is ignored for the in-memory backend.
func Open(backend, path string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "leveldb":
		return NewLevelDB(path)
	case "bolt", "bbolt":
		return NewBoltDB(path)
	case "memory", "mem":
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
