package queue

import (
	"errors"
	"math"
	"testing"

	"eventq/infra/storage"
)

func openMem(t *testing.T, backend *storage.Memory) *Queue[uint64] {
	t.Helper()
	q, err := New[uint64](backend, "events", Uint64{})
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := openMem(t, storage.NewMemory())

	const n = 100
	for i := uint64(0); i < n; i++ {
		if err := q.PushBack(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := uint64(0); i < n; i++ {
		v, ok, err := q.PopFront()
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if v != i {
			t.Fatalf("pop %d: got %d", i, v)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after draining")
	}
}

func TestQueue_PushThreePopInOrder(t *testing.T) {
	q, err := Open[uint64](t.TempDir(), "events", Uint64{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer q.Close()

	for _, v := range []uint64{1, 2, 3} {
		if err := q.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}

	if v, ok, _ := q.PopFront(); !ok || v != 1 {
		t.Fatalf("first pop: got %d ok=%v, want 1", v, ok)
	}
	if v, ok, _ := q.PopFront(); !ok || v != 2 {
		t.Fatalf("second pop: got %d ok=%v, want 2", v, ok)
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("len: got %d, want 1", got)
	}
	if v, ok, _ := q.PopFront(); !ok || v != 3 {
		t.Fatalf("third pop: got %d ok=%v, want 3", v, ok)
	}
	if _, ok, err := q.PopFront(); ok || err != nil {
		t.Fatalf("pop on empty: ok=%v err=%v", ok, err)
	}
}

func TestQueue_EmptyPopDoesNotMutate(t *testing.T) {
	q := openMem(t, storage.NewMemory())

	if _, ok, err := q.PopFront(); ok || err != nil {
		t.Fatalf("empty pop: ok=%v err=%v", ok, err)
	}
	if stats := q.Stats(); stats.Head != 0 || stats.Tail != 0 {
		t.Fatalf("empty pop moved pointers: %+v", stats)
	}
}

func TestQueue_LenTracksPushesAndPops(t *testing.T) {
	q := openMem(t, storage.NewMemory())

	pushes, pops := 0, 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 7; i++ {
			if err := q.PushBack(uint64(i)); err != nil {
				t.Fatalf("push: %v", err)
			}
			pushes++
		}
		for i := 0; i < 4; i++ {
			if _, ok, err := q.PopFront(); err != nil || !ok {
				t.Fatalf("pop: ok=%v err=%v", ok, err)
			}
			pops++
		}
		if got := q.Len(); got != uint64(pushes-pops) {
			t.Fatalf("len: got %d, want %d", got, pushes-pops)
		}
	}
}

func TestQueue_DurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	q, err := Open[uint64](dir, "events", Uint64{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, v := range []uint64{10, 20, 30} {
		if err := q.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	q, err = Open[uint64](dir, "events", Uint64{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q.Close()

	for _, want := range []uint64{10, 20, 30} {
		v, ok, err := q.PopFront()
		if err != nil || !ok {
			t.Fatalf("pop after reopen: ok=%v err=%v", ok, err)
		}
		if v != want {
			t.Fatalf("pop after reopen: got %d, want %d", v, want)
		}
	}
	if _, ok, _ := q.PopFront(); ok {
		t.Fatal("expected empty queue after draining reopened store")
	}
}

func TestQueue_RecoveryWithoutClose(t *testing.T) {
	// Drop the handle without Close, as a crash would, and recover from
	// whatever the backend last committed.
	backend := storage.NewMemory()

	q1 := openMem(t, backend)
	for _, v := range []uint64{1, 2, 3} {
		if err := q1.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}

	q2 := openMem(t, backend)
	for _, want := range []uint64{1, 2, 3} {
		v, ok, err := q2.PopFront()
		if err != nil || !ok {
			t.Fatalf("recovered pop: ok=%v err=%v", ok, err)
		}
		if v != want {
			t.Fatalf("recovered pop: got %d, want %d", v, want)
		}
	}
	if _, ok, _ := q2.PopFront(); ok {
		t.Fatal("recovered queue should be drained")
	}
}

func TestQueue_PushCommitFailureIsInvisible(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)

	if err := q.PushBack(1); err != nil {
		t.Fatalf("push: %v", err)
	}

	backend.FailCommits(1)
	if err := q.PushBack(2); err == nil {
		t.Fatal("expected push to fail on injected commit error")
	}

	if got := q.Len(); got != 1 {
		t.Fatalf("len after failed push: got %d, want 1", got)
	}
	v, ok, err := q.PopFront()
	if err != nil || !ok || v != 1 {
		t.Fatalf("pop after failed push: v=%d ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := q.PopFront(); ok {
		t.Fatal("failed push must not leave an element behind")
	}
}

func TestQueue_PopCommitFailureKeepsElement(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)

	if err := q.PushBack(7); err != nil {
		t.Fatalf("push: %v", err)
	}

	backend.FailCommits(1)
	if _, _, err := q.PopFront(); err == nil {
		t.Fatal("expected pop to fail on injected commit error")
	}

	v, ok, err := q.PopFront()
	if err != nil || !ok || v != 7 {
		t.Fatalf("retry pop: v=%d ok=%v err=%v", v, ok, err)
	}
}

func TestQueue_MissingSlotSurfaced(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)

	if err := q.PushBack(1); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Rip the slot out from under the metadata.
	txn, err := backend.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Delete(newKeyspace("events").slot(0)); err != nil {
		t.Fatalf("delete slot: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, ok, err := q.PopFront()
	if !errors.Is(err, ErrMissingSlot) {
		t.Fatalf("expected ErrMissingSlot, got ok=%v err=%v", ok, err)
	}
}

func TestQueue_DecodeErrorKeepsElementQueued(t *testing.T) {
	backend := storage.NewMemory()

	raw, err := New[[]byte](backend, "events", Bytes{})
	if err != nil {
		t.Fatalf("open raw queue: %v", err)
	}
	if err := raw.PushBack([]byte("not eight bytes")); err != nil {
		t.Fatalf("push: %v", err)
	}

	q := openMem(t, backend)
	if _, _, err := q.PopFront(); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("decode failure dropped the element: len=%d", got)
	}

	// The element is still there for a reader with the right codec.
	v, ok, err := raw.PopFront()
	if err != nil || !ok || string(v) != "not eight bytes" {
		t.Fatalf("raw pop: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestQueue_PopBackReversesOrder(t *testing.T) {
	q := openMem(t, storage.NewMemory())

	for _, v := range []uint64{1, 2, 3} {
		if err := q.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}
	for _, want := range []uint64{3, 2, 1} {
		v, ok, err := q.PopBack()
		if err != nil || !ok {
			t.Fatalf("pop back: ok=%v err=%v", ok, err)
		}
		if v != want {
			t.Fatalf("pop back: got %d, want %d", v, want)
		}
	}
	if _, ok, _ := q.PopBack(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_FrontAndBackDoNotMutate(t *testing.T) {
	q := openMem(t, storage.NewMemory())

	if _, ok, err := q.Front(); ok || err != nil {
		t.Fatalf("front on empty: ok=%v err=%v", ok, err)
	}

	for _, v := range []uint64{1, 2} {
		if err := q.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}

	for i := 0; i < 2; i++ {
		if v, ok, err := q.Front(); err != nil || !ok || v != 1 {
			t.Fatalf("front: v=%d ok=%v err=%v", v, ok, err)
		}
		if v, ok, err := q.Back(); err != nil || !ok || v != 2 {
			t.Fatalf("back: v=%d ok=%v err=%v", v, ok, err)
		}
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("peeks mutated the queue: len=%d", got)
	}
}

func TestQueue_ClearKeepsSequenceMonotonic(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)

	for _, v := range []uint64{1, 2, 3} {
		if err := q.PushBack(v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}
	if err := q.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after clear")
	}

	// Sequence numbers keep climbing; cleared slots are never reused.
	if err := q.PushBack(4); err != nil {
		t.Fatalf("push after clear: %v", err)
	}
	stats := q.Stats()
	if stats.Head != 3 || stats.Tail != 4 {
		t.Fatalf("unexpected pointers after clear+push: %+v", stats)
	}
	if v, ok, err := q.PopFront(); err != nil || !ok || v != 4 {
		t.Fatalf("pop after clear: v=%d ok=%v err=%v", v, ok, err)
	}
}

func TestQueue_ClosedHandleRejectsOperations(t *testing.T) {
	q := openMem(t, storage.NewMemory())
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := q.PushBack(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("push on closed: %v", err)
	}
	if _, _, err := q.PopFront(); !errors.Is(err, ErrClosed) {
		t.Fatalf("pop on closed: %v", err)
	}
	if err := q.Clear(); !errors.Is(err, ErrClosed) {
		t.Fatalf("clear on closed: %v", err)
	}
}

func TestQueue_IncompatibleMetadataRejectedOnOpen(t *testing.T) {
	backend := storage.NewMemory()

	txn, err := backend.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Put([]byte("events/meta"), []byte("garbage")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := New[uint64](backend, "events", Uint64{}); !errors.Is(err, ErrCorruptMetadata) {
		t.Fatalf("expected ErrCorruptMetadata, got %v", err)
	}
}

func TestQueue_LenServesLastCommittedStateWhenRefreshFails(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)

	if err := q.PushBack(1); err != nil {
		t.Fatalf("push: %v", err)
	}

	// A failed commit marks the cache stale; a dead backend then makes the
	// refresh itself fail. The cache was never touched on the failure path,
	// so Len still reports the last committed count.
	backend.FailCommits(1)
	if err := q.PushBack(2); err == nil {
		t.Fatal("expected push to fail on injected commit error")
	}
	_ = backend.Close()

	if got := q.Len(); got != 1 {
		t.Fatalf("len with unreachable backend: got %d, want 1", got)
	}
	if stats := q.Stats(); stats.Head != 0 || stats.Tail != 1 {
		t.Fatalf("stats with unreachable backend: %+v", stats)
	}
}

func TestQueue_SequenceExhaustionIsFatal(t *testing.T) {
	backend := storage.NewMemory()
	q := openMem(t, backend)
	q.meta.tail = math.MaxUint64
	q.meta.head = math.MaxUint64

	if err := q.PushBack(1); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}

	// The guard fires before any storage interaction.
	if _, ok, err := backend.Get([]byte("events/meta")); ok || err != nil {
		t.Fatalf("exhausted push touched storage: ok=%v err=%v", ok, err)
	}
}

func TestQueue_NamespacesAreIndependent(t *testing.T) {
	backend := storage.NewMemory()

	a, err := New[uint64](backend, "alerts", Uint64{})
	if err != nil {
		t.Fatalf("open alerts: %v", err)
	}
	b, err := New[uint64](backend, "metrics", Uint64{})
	if err != nil {
		t.Fatalf("open metrics: %v", err)
	}

	if err := a.PushBack(1); err != nil {
		t.Fatalf("push alerts: %v", err)
	}
	if !b.IsEmpty() {
		t.Fatal("pushing to one queue leaked into another")
	}
	if v, ok, err := a.PopFront(); err != nil || !ok || v != 1 {
		t.Fatalf("pop alerts: v=%d ok=%v err=%v", v, ok, err)
	}
}
