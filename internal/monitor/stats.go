package monitor

import (
	"time"

	"go.uber.org/atomic"
)

// Stats is a point-in-time view of the monitor's counters. Counters are
// written independently by the reader, framer, and send path, so a snapshot
// is eventually consistent, not linearizable.
type Stats struct {
	BytesReceived uint64
	BytesSent     uint64
	Packets       uint64
	Errors        uint64
	RelayDropped  uint64
	Uptime        time.Duration
}

type counters struct {
	bytesReceived atomic.Uint64
	bytesSent     atomic.Uint64
	packets       atomic.Uint64
	errors        atomic.Uint64
	start         time.Time
}

func newCounters() *counters {
	return &counters{start: time.Now()}
}

func (c *counters) snapshot(relayDropped uint64) Stats {
	return Stats{
		BytesReceived: c.bytesReceived.Load(),
		BytesSent:     c.bytesSent.Load(),
		Packets:       c.packets.Load(),
		Errors:        c.errors.Load(),
		RelayDropped:  relayDropped,
		Uptime:        time.Since(c.start),
	}
}
