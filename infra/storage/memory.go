package storage

import (
	"errors"
	"sync"
)

// ErrInjectedCommit is the error returned by a Memory commit that was told
// to fail via FailCommits.
var ErrInjectedCommit = errors.New("storage: injected commit failure")

// Memory is a map-backed Backend. It exists for tests and for embedding the
// queue without a disk footprint: same transactional contract as Pebble,
// including all-or-nothing commits, but nothing survives the process.
//
// FailCommits arms a failure injector so tests can prove that the engine
// leaves no partial state behind when a commit blows up mid-operation.
type Memory struct {
	mu          sync.Mutex
	data        map[string][]byte
	failCommits int
	closed      bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// FailCommits makes the next n commits fail with ErrInjectedCommit without
// applying any of their writes.
func (m *Memory) FailCommits(n int) {
	m.mu.Lock()
	m.failCommits = n
	m.mu.Unlock()
}

func (m *Memory) Get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrBackendClosed
	}
	val, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (m *Memory) Begin() (Txn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	return &memoryTxn{
		backend: m,
		puts:    make(map[string][]byte),
		deletes: make(map[string]bool),
	}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// memoryTxn buffers writes until Commit. Reads consult the buffer first so
// the transaction sees its own writes.
type memoryTxn struct {
	backend *Memory
	puts    map[string][]byte
	deletes map[string]bool
	done    bool
}

func (t *memoryTxn) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if t.deletes[k] {
		return nil, false, nil
	}
	if val, ok := t.puts[k]; ok {
		out := make([]byte, len(val))
		copy(out, val)
		return out, true, nil
	}
	return t.backend.Get(key)
}

func (t *memoryTxn) Put(key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	buf := make([]byte, len(value))
	copy(buf, value)
	t.puts[k] = buf
	return nil
}

func (t *memoryTxn) Delete(key []byte) error {
	k := string(key)
	delete(t.puts, k)
	t.deletes[k] = true
	return nil
}

func (t *memoryTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if t.backend.closed {
		return ErrBackendClosed
	}
	if t.backend.failCommits > 0 {
		t.backend.failCommits--
		return ErrInjectedCommit
	}
	for k, v := range t.puts {
		t.backend.data[k] = v
	}
	for k := range t.deletes {
		delete(t.backend.data, k)
	}
	return nil
}

func (t *memoryTxn) Discard() error {
	t.done = true
	return nil
}
