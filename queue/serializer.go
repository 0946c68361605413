package queue

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/proto"
)

// ErrCorruptPayload is returned by a Decode that cannot make sense of the
// stored bytes.
var ErrCorruptPayload = errors.New("eventq: corrupted payload")

// Serializer converts payloads to and from the bytes stored in a slot.
// The engine treats payloads as opaque; plug in Binary, JSON, Protobuf,
// MsgPack, whatever the pipeline speaks.
type Serializer[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// Bytes stores payloads as-is.
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error) { return v, nil }

func (Bytes) Decode(data []byte) ([]byte, error) { return data, nil }

// Uint64 stores a counter or identifier as 8 big-endian bytes.
type Uint64 struct{}

func (Uint64) Encode(v uint64) ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf, nil
}

func (Uint64) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, ErrCorruptPayload
	}
	return binary.BigEndian.Uint64(data), nil
}

// JSON stores any Go value via encoding/json.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// Proto stores protobuf messages. New allocates the empty message Decode
// unmarshals into.
type Proto[M proto.Message] struct {
	New func() M
}

func (s Proto[M]) Encode(m M) ([]byte, error) { return proto.Marshal(m) }

func (s Proto[M]) Decode(data []byte) (M, error) {
	m := s.New()
	if err := proto.Unmarshal(data, m); err != nil {
		return m, err
	}
	return m, nil
}
