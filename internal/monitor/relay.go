package monitor

import (
	"time"

	"go.uber.org/atomic"

	"firestige.xyz/ttyscope/internal/metrics"
)

// Chunk is one raw read result from the device plus its arrival time.
type Chunk struct {
	Data []byte
	Time time.Time
}

// Relay is the bounded queue between the reader and the framer. It is safe
// for one producer and one consumer. When full it drops the oldest pending
// chunk so newer data wins over stale data when the consumer falls behind.
type Relay struct {
	ch      chan Chunk
	dropped atomic.Uint64
}

// NewRelay returns a relay holding up to capacity chunks.
func NewRelay(capacity int) *Relay {
	if capacity <= 0 {
		capacity = DefaultRelayCapacity
	}
	return &Relay{ch: make(chan Chunk, capacity)}
}

// Offer enqueues c, waiting up to timeout for space. If the relay is still
// full after the timeout, at most one oldest pending chunk is evicted and
// the enqueue is retried once without blocking. Returns false when c was
// lost. Offer never blocks past the timeout.
func (r *Relay) Offer(c Chunk, timeout time.Duration) bool {
	select {
	case r.ch <- c:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r.ch <- c:
		return true
	case <-timer.C:
	}

	// Still full: evict the oldest pending chunk. The consumer may have
	// drained concurrently, so the receive must not block.
	select {
	case <-r.ch:
		r.drop()
	default:
	}

	select {
	case r.ch <- c:
		return true
	default:
		r.drop()
		return false
	}
}

// Take dequeues one chunk, waiting up to timeout. The second return value
// is false on timeout.
func (r *Relay) Take(timeout time.Duration) (Chunk, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c := <-r.ch:
		return c, true
	case <-timer.C:
		return Chunk{}, false
	}
}

// Len returns the number of chunks currently buffered.
func (r *Relay) Len() int { return len(r.ch) }

// Capacity returns the fixed capacity.
func (r *Relay) Capacity() int { return cap(r.ch) }

// Dropped returns the total number of chunks lost to the overflow policy.
func (r *Relay) Dropped() uint64 { return r.dropped.Load() }

func (r *Relay) drop() {
	r.dropped.Inc()
	metrics.RelayDroppedTotal.Inc()
}
