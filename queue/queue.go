// Package queue implements a durable FIFO queue over a transactional
// key-value backend.
//
// Every push and pop is a single atomic commit covering the slot mutation
// and the (head, tail) metadata update, so a reopen after a crash always
// observes a consistent queue: no lost, duplicated, or reordered elements.
//
// Basic usage:
//
//	q, err := queue.Open[uint64]("./events", "events", queue.Uint64{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer q.Close()
//
//	if err := q.PushBack(42); err != nil {
//		log.Fatal(err)
//	}
//	v, ok, err := q.PopFront()
//
// A Queue handle is not internally synchronized: it assumes one logical
// owner, matching its single read-modify-write pipeline. Concurrent callers
// must wrap it with their own mutex. Cross-process access to the same store
// is only safe if the backend enforces its own locking (pebble does).
package queue

import (
	"fmt"
	"math"

	"eventq/infra/storage"
)

// Queue is a persistent FIFO queue of T values.
type Queue[T any] struct {
	backend storage.Backend
	owns    bool
	codec   Serializer[T]
	keys    keyspace

	// meta mirrors the persisted record. After a failed commit it can no
	// longer be trusted and is reloaded from the backend before the next
	// operation.
	meta      metadata
	metaStale bool

	closed bool
}

// Open opens or creates a pebble-backed queue under dir, namespaced by
// name. The queue owns the backend and releases it on Close.
func Open[T any](dir, name string, codec Serializer[T]) (*Queue[T], error) {
	backend, err := storage.OpenPebble(dir)
	if err != nil {
		return nil, fmt.Errorf("eventq: open %q: %w", name, err)
	}
	q, err := New(backend, name, codec)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	q.owns = true
	return q, nil
}

// New opens or creates a queue on an existing backend. The caller keeps
// ownership of the backend; Close only marks the handle closed. Several
// logical queues can share one backend under different names.
func New[T any](backend storage.Backend, name string, codec Serializer[T]) (*Queue[T], error) {
	keys := newKeyspace(name)
	meta, err := loadMetadata(backend, keys.meta)
	if err != nil {
		return nil, fmt.Errorf("eventq: open %q: %w", name, err)
	}
	return &Queue[T]{
		backend: backend,
		codec:   codec,
		keys:    keys,
		meta:    meta,
	}, nil
}

// PushBack appends v to the queue. On return without error the element is
// durably enqueued; on any error the queue is unchanged.
func (q *Queue[T]) PushBack(v T) error {
	if q.closed {
		return ErrClosed
	}
	if err := q.refreshMeta(); err != nil {
		return err
	}
	if q.meta.tail == math.MaxUint64 {
		return ErrSequenceExhausted
	}

	data, err := q.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	txn, err := q.backend.Begin()
	if err != nil {
		return fmt.Errorf("eventq: push: %w", err)
	}
	next := q.meta
	if err := txn.Put(q.keys.slot(next.tail), data); err != nil {
		_ = txn.Discard()
		return fmt.Errorf("eventq: push: %w", err)
	}
	next.tail++
	if err := txn.Put(q.keys.meta, next.encode()); err != nil {
		_ = txn.Discard()
		return fmt.Errorf("eventq: push: %w", err)
	}
	if err := txn.Commit(); err != nil {
		q.metaStale = true
		return fmt.Errorf("eventq: push commit: %w", err)
	}
	q.meta = next
	return nil
}

// PopFront removes and returns the oldest element. ok is false on an empty
// queue, which performs no storage mutation. A decode failure leaves the
// element queued and surfaces ErrDecode; a missing slot inside the live
// range surfaces ErrMissingSlot.
func (q *Queue[T]) PopFront() (T, bool, error) {
	return q.pop(true)
}

// PopBack removes and returns the newest element, turning the queue into a
// deque for callers that need it.
func (q *Queue[T]) PopBack() (T, bool, error) {
	return q.pop(false)
}

func (q *Queue[T]) pop(front bool) (T, bool, error) {
	var zero T
	if q.closed {
		return zero, false, ErrClosed
	}
	if err := q.refreshMeta(); err != nil {
		return zero, false, err
	}
	if q.meta.empty() {
		return zero, false, nil
	}

	next := q.meta
	var seq uint64
	if front {
		seq = next.head
		next.head++
	} else {
		next.tail--
		seq = next.tail
	}

	txn, err := q.backend.Begin()
	if err != nil {
		return zero, false, fmt.Errorf("eventq: pop: %w", err)
	}
	slotKey := q.keys.slot(seq)
	data, ok, err := txn.Get(slotKey)
	if err != nil {
		_ = txn.Discard()
		return zero, false, fmt.Errorf("eventq: pop: %w", err)
	}
	if !ok {
		_ = txn.Discard()
		return zero, false, fmt.Errorf("%w: seq %d", ErrMissingSlot, seq)
	}
	v, err := q.codec.Decode(data)
	if err != nil {
		_ = txn.Discard()
		return zero, false, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := txn.Delete(slotKey); err != nil {
		_ = txn.Discard()
		return zero, false, fmt.Errorf("eventq: pop: %w", err)
	}
	if err := txn.Put(q.keys.meta, next.encode()); err != nil {
		_ = txn.Discard()
		return zero, false, fmt.Errorf("eventq: pop: %w", err)
	}
	if err := txn.Commit(); err != nil {
		q.metaStale = true
		return zero, false, fmt.Errorf("eventq: pop commit: %w", err)
	}
	q.meta = next
	return v, true, nil
}

// Front returns the oldest element without removing it.
func (q *Queue[T]) Front() (T, bool, error) {
	return q.peek(func(m metadata) uint64 { return m.head })
}

// Back returns the newest element without removing it.
func (q *Queue[T]) Back() (T, bool, error) {
	return q.peek(func(m metadata) uint64 { return m.tail - 1 })
}

func (q *Queue[T]) peek(pick func(metadata) uint64) (T, bool, error) {
	var zero T
	if q.closed {
		return zero, false, ErrClosed
	}
	if err := q.refreshMeta(); err != nil {
		return zero, false, err
	}
	if q.meta.empty() {
		return zero, false, nil
	}
	seq := pick(q.meta)
	data, ok, err := q.backend.Get(q.keys.slot(seq))
	if err != nil {
		return zero, false, fmt.Errorf("eventq: peek: %w", err)
	}
	if !ok {
		return zero, false, fmt.Errorf("%w: seq %d", ErrMissingSlot, seq)
	}
	v, err := q.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, true, nil
}

// Clear deletes every live element in one transaction. Sequence numbers are
// not reset: head joins tail so later pushes keep counting upward and never
// reuse a slot key.
func (q *Queue[T]) Clear() error {
	if q.closed {
		return ErrClosed
	}
	if err := q.refreshMeta(); err != nil {
		return err
	}
	if q.meta.empty() {
		return nil
	}

	txn, err := q.backend.Begin()
	if err != nil {
		return fmt.Errorf("eventq: clear: %w", err)
	}
	next := q.meta
	for seq := next.head; seq < next.tail; seq++ {
		if err := txn.Delete(q.keys.slot(seq)); err != nil {
			_ = txn.Discard()
			return fmt.Errorf("eventq: clear: %w", err)
		}
	}
	next.head = next.tail
	if err := txn.Put(q.keys.meta, next.encode()); err != nil {
		_ = txn.Discard()
		return fmt.Errorf("eventq: clear: %w", err)
	}
	if err := txn.Commit(); err != nil {
		q.metaStale = true
		return fmt.Errorf("eventq: clear commit: %w", err)
	}
	q.meta = next
	return nil
}

// Len returns the number of live elements.
//
// After a failed commit Len tries to refresh from the backend. If that read
// also fails it serves the cached pointers: the failure path never mutates
// the cache, so under all-or-nothing commits they still describe the last
// committed state, and the backend error resurfaces on the next mutating
// operation.
func (q *Queue[T]) Len() uint64 {
	if q.metaStale {
		if err := q.refreshMeta(); err != nil {
			return q.meta.count()
		}
	}
	return q.meta.count()
}

// IsEmpty reports whether the queue holds no elements.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Stats is a snapshot of the queue's pointer state.
type Stats struct {
	Head   uint64 `json:"head"`
	Tail   uint64 `json:"tail"`
	Length uint64 `json:"length"`
}

// Stats reads from the same cache as Len, with the same refresh behavior.
func (q *Queue[T]) Stats() Stats {
	if q.metaStale {
		if err := q.refreshMeta(); err != nil {
			return Stats{Head: q.meta.head, Tail: q.meta.tail, Length: q.meta.count()}
		}
	}
	return Stats{Head: q.meta.head, Tail: q.meta.tail, Length: q.meta.count()}
}

// Close releases the queue handle. A backend opened by Open is closed with
// it; a backend passed to New stays open for its owner. Close is idempotent
// and every later operation returns ErrClosed.
func (q *Queue[T]) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	if q.owns {
		return q.backend.Close()
	}
	return nil
}

// refreshMeta reloads metadata from the backend after a failed commit, so
// the cache never drifts from durable state.
func (q *Queue[T]) refreshMeta() error {
	if !q.metaStale {
		return nil
	}
	meta, err := loadMetadata(q.backend, q.keys.meta)
	if err != nil {
		return fmt.Errorf("eventq: reload metadata: %w", err)
	}
	q.meta = meta
	q.metaStale = false
	return nil
}
