// Package storage defines the transactional key-value contract the queue
// engine runs on, plus the concrete backends that satisfy it.
//
// The engine never touches disk directly. Everything goes through Backend,
// so the storage technology can be swapped (pebble today, something else
// tomorrow) without touching queue logic.
package storage

import "errors"

// ErrBackendClosed is returned by operations on a closed backend.
var ErrBackendClosed = errors.New("storage: backend closed")

// Backend is a durable key-value store with atomic multi-key transactions.
//
// Keys are ordered byte strings. Get returns ok == false when the key is
// absent; an error only signals a real storage failure.
type Backend interface {
	Get(key []byte) (value []byte, ok bool, err error)

	// Begin starts a transaction. Writes are buffered until Commit.
	Begin() (Txn, error)

	Close() error
}

// Txn is a single atomic unit of reads and writes.
//
// Reads inside the transaction observe a consistent snapshot that includes
// the transaction's own uncommitted writes. Commit applies everything
// durably or nothing at all; a failed Commit leaves prior committed state
// unchanged. Discard releases the transaction without applying it and is
// safe to call after Commit.
type Txn interface {
	Get(key []byte) (value []byte, ok bool, err error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard() error
}
