package monitor

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"firestige.xyz/ttyscope/internal/decode"
	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/metrics"
	"firestige.xyz/ttyscope/internal/sink"
)

// framer assembles chunks into packets using a silence heuristic: a packet
// boundary is declared once the stream has been quiet for the packet timeout
// after the most recent byte. Exactly one packet buffer is open at a time,
// owned by the framer goroutine alone.
type framer struct {
	relay *Relay
	sink  sink.Sink
	stats *counters

	poll           time.Duration
	packetTimeout  atomic.Duration
	maxPacketBytes int
	hexDisplay     atomic.Bool
	modbus         atomic.Bool

	inspector *inspect.FrameInspector

	// mu guards the decoder, which the foreground may swap while the
	// framer goroutine is flushing.
	mu      sync.Mutex
	decoder *decode.Decoder

	buf      []byte
	lastByte time.Time
}

func newFramer(relay *Relay, out sink.Sink, stats *counters, dec *decode.Decoder, packetTimeout time.Duration, maxPacketBytes int) *framer {
	f := &framer{
		relay:          relay,
		sink:           out,
		stats:          stats,
		poll:           DefaultPollInterval,
		maxPacketBytes: maxPacketBytes,
		inspector:      inspect.NewFrameInspector(),
		decoder:        dec,
	}
	f.packetTimeout.Store(packetTimeout)
	return f
}

// run is the framer goroutine. It polls the relay so idle gaps can be
// observed even when no chunks arrive, and exits when stop closes. A packet
// still accumulating at shutdown is flushed rather than discarded.
func (f *framer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			f.flush(time.Now())
			return
		default:
		}

		c, ok := f.relay.Take(f.poll)
		now := time.Now()
		if ok {
			f.buf = append(f.buf, c.Data...)
			f.lastByte = now
			if f.maxPacketBytes > 0 && len(f.buf) >= f.maxPacketBytes {
				f.flush(now)
			}
			continue
		}
		if len(f.buf) > 0 && now.Sub(f.lastByte) > f.packetTimeout.Load() {
			f.flush(now)
		}
	}
}

// flush snapshots the packet buffer, clears it, and runs the inspector
// pipeline synchronously. An empty buffer never produces a sink event.
func (f *framer) flush(t time.Time) {
	if len(f.buf) == 0 {
		return
	}
	pkt := make([]byte, len(f.buf))
	copy(pkt, f.buf)
	f.buf = f.buf[:0]

	f.stats.packets.Inc()
	metrics.PacketsTotal.Inc()
	f.emit(pkt, t)
}

// emit renders one packet snapshot. Decoding failure falls back to hex so
// data is never dropped, and the frame inspector's output is independent of
// the base rendering.
func (f *framer) emit(pkt []byte, t time.Time) {
	f.mu.Lock()
	hex := f.hexDisplay.Load()
	var text string
	if !hex {
		decoded, err := f.decoder.Decode(pkt)
		if err != nil {
			hex = true
		} else {
			text = decoded
		}
	}
	// Drop partial multi-byte state so it never leaks into the next packet.
	f.decoder.Reset()
	name := f.decoder.Name()
	f.mu.Unlock()

	if hex {
		text = inspect.HexString(pkt)
	} else {
		text = strings.TrimSpace(text)
	}
	if text != "" {
		f.sink.OnPacket(sink.Event{
			Time:     t,
			Text:     text,
			Hex:      hex,
			Encoding: name,
			Kind:     sink.KindData,
		})
	}

	if f.modbus.Load() {
		if summary, ok := f.inspector.Inspect(pkt); ok {
			f.sink.OnPacket(sink.Event{Time: t, Text: summary, Kind: sink.KindFrame})
		}
	}
}

// setPacketTimeout hot-swaps the silence threshold. Takes effect on the next
// boundary evaluation.
func (f *framer) setPacketTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidTimeout
	}
	f.packetTimeout.Store(d)
	return nil
}

// setEncoding swaps the decoder. The previous decoder stays active when the
// name is not supported.
func (f *framer) setEncoding(name string) error {
	dec, err := decode.NewDecoder(name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.decoder = dec
	f.mu.Unlock()
	return nil
}

func (f *framer) encoding() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decoder.Name()
}
