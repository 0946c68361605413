package queue

import "encoding/binary"

const metadataSize = 16

// metadata is the persisted (head, tail) pointer pair. head is the next
// sequence to pop, tail the next to push; tail - head is the live count.
// It is never committed on its own, always inside the transaction of the
// slot mutation it accompanies.
type metadata struct {
	head uint64
	tail uint64
}

func (m metadata) count() uint64 { return m.tail - m.head }

func (m metadata) empty() bool { return m.head == m.tail }

// binary encoding: [head:8][tail:8], big-endian
func (m metadata) encode() []byte {
	buf := make([]byte, metadataSize)
	binary.BigEndian.PutUint64(buf[0:8], m.head)
	binary.BigEndian.PutUint64(buf[8:16], m.tail)
	return buf
}

func decodeMetadata(b []byte) (metadata, error) {
	if len(b) != metadataSize {
		return metadata{}, ErrCorruptMetadata
	}
	m := metadata{
		head: binary.BigEndian.Uint64(b[0:8]),
		tail: binary.BigEndian.Uint64(b[8:16]),
	}
	if m.head > m.tail {
		return metadata{}, ErrCorruptMetadata
	}
	return m, nil
}

// getter is the read half shared by Backend and Txn.
type getter interface {
	Get(key []byte) ([]byte, bool, error)
}

// loadMetadata reads the metadata record, returning the zero value for a
// fresh queue that has never committed anything.
func loadMetadata(g getter, key []byte) (metadata, error) {
	raw, ok, err := g.Get(key)
	if err != nil {
		return metadata{}, err
	}
	if !ok {
		return metadata{}, nil
	}
	return decodeMetadata(raw)
}
