// Package sink defines where rendered packets go. Sinks are best-effort:
// the framing core fires events and never waits on delivery.
package sink

import "time"

// Kind tags what produced an event.
type Kind int

const (
	// KindData is the base rendering of a packet (decoded text or hex).
	KindData Kind = iota
	// KindFrame is a protocol inspector summary for the same packet.
	KindFrame
)

// Event is one rendered packet handed to a sink.
type Event struct {
	Time     time.Time
	Text     string
	Hex      bool
	Encoding string
	Kind     Kind
}

// Sink receives rendered packets and outbound sends.
type Sink interface {
	OnPacket(e Event)
	OnSend(text string, t time.Time)
	Close() error
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) OnPacket(e Event) {
	for _, s := range m {
		s.OnPacket(e)
	}
}

func (m Multi) OnSend(text string, t time.Time) {
	for _, s := range m {
		s.OnSend(text, t)
	}
}

// Close closes every sink and returns the last error seen.
func (m Multi) Close() error {
	var err error
	for _, s := range m {
		if e := s.Close(); e != nil {
			err = e
		}
	}
	return err
}
