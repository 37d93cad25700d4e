package state

import (
	"sort"

	"github.com/syndtr/goleveldb/leveldb"

	"ratemint/storage"
)

// Reader is the read side of a state layer. Missing keys are reported as a
// nil value with a nil error.
type Reader interface {
	Get(key []byte) ([]byte, error)
}

// Store is the read/write surface the Manager operates on.
type Store interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

type dbReader struct {
	db storage.Database
}

// NewDBReader adapts a storage backend to the Reader contract.
func NewDBReader(db storage.Database) Reader {
	return dbReader{db: db}
}

func (r dbReader) Get(key []byte) ([]byte, error) {
	value, err := r.db.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

// Overlay buffers writes on top of a parent layer. Nothing reaches the parent
// until the buffered writes are committed, which lets a failed call be thrown
// away without touching persisted state.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	parent  Reader
	entries map[string]overlayEntry
}

// NewOverlay creates an empty write buffer over parent.
func NewOverlay(parent Reader) *Overlay {
	return &Overlay{parent: parent, entries: make(map[string]overlayEntry)}
}

// Child opens a nested overlay whose writes can be merged into o.
func (o *Overlay) Child() *Overlay {
	return NewOverlay(o)
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if entry, ok := o.entries[string(key)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return append([]byte(nil), entry.value...), nil
	}
	if o.parent == nil {
		return nil, nil
	}
	return o.parent.Get(key)
}

func (o *Overlay) Put(key, value []byte) error {
	if len(value) == 0 {
		return o.Delete(key)
	}
	o.entries[string(key)] = overlayEntry{value: append([]byte(nil), value...)}
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.entries[string(key)] = overlayEntry{deleted: true}
	return nil
}

// Len returns the number of buffered writes and deletes.
func (o *Overlay) Len() int {
	return len(o.entries)
}

func (o *Overlay) sortedKeys() []string {
	keys := make([]string, 0, len(o.entries))
	for key := range o.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MergeInto replays the buffered writes onto dst.
func (o *Overlay) MergeInto(dst *Overlay) {
	for _, key := range o.sortedKeys() {
		dst.entries[key] = o.entries[key]
	}
}

// Batch renders the buffered writes as a storage batch in key order.
func (o *Overlay) Batch() *leveldb.Batch {
	batch := new(leveldb.Batch)
	for _, key := range o.sortedKeys() {
		entry := o.entries[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	return batch
}

// Commit writes the buffered entries to db as one atomic batch and clears the
// overlay.
func (o *Overlay) Commit(db storage.Database) error {
	if len(o.entries) == 0 {
		return nil
	}
	if err := db.Write(o.Batch()); err != nil {
		return err
	}
	o.entries = make(map[string]overlayEntry)
	return nil
}

// Discard drops every buffered write.
func (o *Overlay) Discard() {
	o.entries = make(map[string]overlayEntry)
}
