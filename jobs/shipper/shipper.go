// Package shipper drains a durable queue into a downstream sink, typically
// a Kafka topic. It is the consumer half of a collector -> queue -> shipper
// pipeline: events ride out crashes and broker outages in the queue and get
// forwarded once the sink accepts them.
package shipper

import (
	"context"
	"encoding/binary"
	"log"
	"sync"
	"time"

	"eventq/queue"
)

// Sink is where drained events go.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

type Shipper struct {
	q        *queue.Queue[[]byte]
	sink     Sink
	interval time.Duration

	// guards the queue handle, which is not internally synchronized
	mu *sync.Mutex
}

// New builds a shipper over q. mu must be the same mutex every other user
// of the queue handle locks. A zero interval defaults to 250ms.
func New(q *queue.Queue[[]byte], mu *sync.Mutex, sink Sink, interval time.Duration) *Shipper {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Shipper{q: q, sink: sink, interval: interval, mu: mu}
}

// Run drains on a ticker until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	log.Println("[shipper] started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[shipper] stopped")
			return
		case <-ticker.C:
			s.drainOnce(ctx)
		}
	}
}

// drainOnce forwards queued events until the queue is empty or the sink
// refuses one. An element is only popped after the sink accepted it, so a
// send failure leaves it at the front for the next tick: at-least-once, and
// never silently dropped.
//
// The mutex is released during Send, so another consumer may pop the peeked
// element in that window. The pop afterwards is therefore guarded by the
// head sequence captured at peek time: if the head moved, someone else took
// the element and the shipper must not pop its successor.
func (s *Shipper) drainOnce(ctx context.Context) {
	for {
		s.mu.Lock()
		payload, ok, err := s.q.Front()
		if err != nil {
			s.mu.Unlock()
			log.Printf("[shipper] peek failed: %v", err)
			return
		}
		if !ok {
			s.mu.Unlock()
			return
		}
		seq := s.q.Stats().Head
		s.mu.Unlock()

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := s.sink.Send(ctx, key, payload); err != nil {
			log.Printf("[shipper] send failed, will retry: %v", err)
			return
		}

		s.mu.Lock()
		if s.q.Stats().Head == seq {
			_, _, err = s.q.PopFront()
		}
		s.mu.Unlock()
		if err != nil {
			log.Printf("[shipper] pop after send failed: %v", err)
			return
		}
	}
}

// Close releases the sink. The queue handle belongs to the caller.
func (s *Shipper) Close() error {
	return s.sink.Close()
}
