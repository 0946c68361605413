package queue

import "encoding/binary"

// keyspace namespaces one logical queue inside a shared backend.
//
// Layout:
//
//	<name>/meta          -> head BE64 || tail BE64
//	<name>/slot/<seq BE64> -> payload bytes
//
// Big-endian sequence keys keep storage order equal to numeric order, so a
// range scan over the slot prefix walks the queue front to back.
type keyspace struct {
	meta       []byte
	slotPrefix []byte
}

func newKeyspace(name string) keyspace {
	return keyspace{
		meta:       []byte(name + "/meta"),
		slotPrefix: []byte(name + "/slot/"),
	}
}

func (ks keyspace) slot(seq uint64) []byte {
	key := make([]byte, len(ks.slotPrefix)+8)
	n := copy(key, ks.slotPrefix)
	binary.BigEndian.PutUint64(key[n:], seq)
	return key
}
