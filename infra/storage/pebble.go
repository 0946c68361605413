package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Pebble is the production Backend, a pebble database in a directory.
// Transactions are indexed batches committed with pebble.Sync, so a commit
// that returns nil has reached disk.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens or creates a pebble store at dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// val aliases pebble-owned memory, copy before releasing.
	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (p *Pebble) Begin() (Txn, error) {
	return &pebbleTxn{batch: p.db.NewIndexedBatch()}, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

type pebbleTxn struct {
	batch *pebble.Batch
	done  bool
}

func (t *pebbleTxn) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := t.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (t *pebbleTxn) Put(key, value []byte) error {
	return t.batch.Set(key, value, nil)
}

func (t *pebbleTxn) Delete(key []byte) error {
	return t.batch.Delete(key, nil)
}

func (t *pebbleTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.batch.Commit(pebble.Sync)
	if cerr := t.batch.Close(); err == nil {
		err = cerr
	}
	return err
}

func (t *pebbleTxn) Discard() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.batch.Close()
}
