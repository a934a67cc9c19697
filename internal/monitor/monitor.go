// Package monitor implements the acquisition and framing pipeline: a reader
// goroutine feeding a bounded relay, a framer goroutine assembling packets by
// inter-byte silence, and a façade owning the connection lifecycle, the send
// path, and the runtime setters.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"firestige.xyz/ttyscope/internal/decode"
	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/log"
	"firestige.xyz/ttyscope/internal/metrics"
	"firestige.xyz/ttyscope/internal/serial"
	"firestige.xyz/ttyscope/internal/sink"
)

const (
	DefaultRelayCapacity  = 1000
	DefaultPacketTimeout  = 10 * time.Millisecond
	DefaultPollInterval   = 50 * time.Millisecond
	DefaultOfferTimeout   = 100 * time.Millisecond
	DefaultConnectRetries = 3
	DefaultRetryDelay     = time.Second
	DefaultGracePeriod    = 500 * time.Millisecond
	DefaultMaxPacketBytes = 64 * 1024

	readBufSize = 4096
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// openDevice is replaced in tests.
var openDevice = serial.Open

// Options configures a Monitor. Zero values take the package defaults.
type Options struct {
	Serial         serial.Options
	Encoding       string
	PacketTimeout  time.Duration
	RelayCapacity  int
	MaxPacketBytes int
	ConnectRetries int
	RetryDelay     time.Duration
	GracePeriod    time.Duration
	HexDisplay     bool
	Modbus         bool
	// Keywords is the highlight filter table, shared with the sink that
	// renders matches. Nil means an empty table.
	Keywords *inspect.Table
	Sink     sink.Sink
}

func (o *Options) applyDefaults() {
	if o.Encoding == "" {
		o.Encoding = decode.DefaultEncoding
	}
	if o.PacketTimeout <= 0 {
		o.PacketTimeout = DefaultPacketTimeout
	}
	if o.RelayCapacity <= 0 {
		o.RelayCapacity = DefaultRelayCapacity
	}
	if o.MaxPacketBytes <= 0 {
		o.MaxPacketBytes = DefaultMaxPacketBytes
	}
	if o.ConnectRetries <= 0 {
		o.ConnectRetries = DefaultConnectRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
}

// Monitor ties the pipeline together. All exported methods are safe for
// concurrent use from the foreground while the background goroutines run.
type Monitor struct {
	opts     Options
	relay    *Relay
	framer   *framer
	stats    *counters
	keywords *inspect.Table
	out      sink.Sink

	state   atomic.Int32
	running atomic.Bool
	closed  atomic.Bool

	mu  sync.Mutex // guards dev
	dev serial.Device

	stop       chan struct{}
	readerDone chan struct{}
	framerDone chan struct{}
	fatal      chan error
}

// New builds a Monitor. The sink is required; the device is opened by Start.
func New(opts Options) (*Monitor, error) {
	opts.applyDefaults()
	dec, err := decode.NewDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	keywords := opts.Keywords
	if keywords == nil {
		keywords = inspect.NewTable()
	}

	stats := newCounters()
	relay := NewRelay(opts.RelayCapacity)
	f := newFramer(relay, opts.Sink, stats, dec, opts.PacketTimeout, opts.MaxPacketBytes)
	f.hexDisplay.Store(opts.HexDisplay)
	f.modbus.Store(opts.Modbus)

	return &Monitor{
		opts:       opts,
		relay:      relay,
		framer:     f,
		stats:      stats,
		keywords:   keywords,
		out:        opts.Sink,
		stop:       make(chan struct{}),
		readerDone: make(chan struct{}),
		framerDone: make(chan struct{}),
		fatal:      make(chan error, 1),
	}, nil
}

// Start opens the device (with the bounded retry loop) and launches the
// reader and framer goroutines.
func (m *Monitor) Start() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := m.connect(); err != nil {
		return err
	}
	m.running.Store(true)
	go m.readLoop()
	go m.framer.run(m.stop, m.framerDone)
	return nil
}

// connect runs the bounded retry loop: up to ConnectRetries attempts, each
// failure followed by RetryDelay. Exhaustion is terminal.
func (m *Monitor) connect() error {
	m.setState(StateConnecting)
	var lastErr error
	for attempt := 1; attempt <= m.opts.ConnectRetries; attempt++ {
		if m.closed.Load() {
			m.setState(StateDisconnected)
			return ErrClosed
		}
		dev, err := openDevice(m.opts.Serial)
		if err == nil {
			m.mu.Lock()
			m.dev = dev
			m.mu.Unlock()
			m.setState(StateOpen)
			log.GetLogger().WithField("port", m.opts.Serial.Port).Info("connected")
			return nil
		}
		lastErr = err
		log.GetLogger().WithError(err).Warnf("connect attempt %d/%d failed", attempt, m.opts.ConnectRetries)
		if attempt < m.opts.ConnectRetries {
			time.Sleep(m.opts.RetryDelay)
		}
	}
	m.setState(StateDisconnected)
	return fmt.Errorf("%w after %d attempts: %v", ErrConnectionFailed, m.opts.ConnectRetries, lastErr)
}

// readLoop is the reader goroutine: the sole producer into the relay and
// the sole writer of the received-byte counter.
func (m *Monitor) readLoop() {
	defer close(m.readerDone)
	buf := make([]byte, readBufSize)
	for m.running.Load() {
		dev := m.device()
		if dev == nil {
			return
		}
		n, err := dev.Read(buf)
		if err != nil {
			if !m.running.Load() {
				return
			}
			m.stats.errors.Inc()
			metrics.ErrorsTotal.WithLabelValues("read").Inc()
			log.GetLogger().WithError(err).Warn("read failed, reconnecting")
			if rerr := m.reconnect(); rerr != nil {
				if rerr != ErrClosed {
					m.reportFatal(rerr)
				}
				return
			}
			continue
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		m.stats.bytesReceived.Add(uint64(n))
		metrics.BytesReceivedTotal.Add(float64(n))
		m.relay.Offer(Chunk{Data: data, Time: time.Now()}, DefaultOfferTimeout)
	}
}

// reconnect releases the failed device and replays the connect retry loop.
func (m *Monitor) reconnect() error {
	m.mu.Lock()
	if m.dev != nil {
		m.dev.Close()
		m.dev = nil
	}
	m.mu.Unlock()
	return m.connect()
}

// reportFatal surfaces a terminal connection failure to the foreground.
// Only the first failure is kept.
func (m *Monitor) reportFatal(err error) {
	m.stats.errors.Inc()
	metrics.ErrorsTotal.WithLabelValues("connect").Inc()
	m.setState(StateDisconnected)
	select {
	case m.fatal <- err:
	default:
	}
}

// Fatal reports terminal connection failures. Receiving from it means packet
// delivery has stopped.
func (m *Monitor) Fatal() <-chan error {
	return m.fatal
}

// Send writes data to the device synchronously and notifies the sink with
// the display text. It bypasses the relay.
func (m *Monitor) Send(data []byte, display string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.State() != StateOpen {
		return ErrNotConnected
	}
	dev := m.device()
	if dev == nil {
		return ErrNotConnected
	}
	n, err := dev.Write(data)
	if err != nil {
		m.stats.errors.Inc()
		metrics.ErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("monitor: write: %w", err)
	}
	m.stats.bytesSent.Add(uint64(n))
	metrics.BytesSentTotal.Add(float64(n))
	m.out.OnSend(display, time.Now())
	return nil
}

// SetBaudRate changes the line speed live and discards stale driver buffers.
func (m *Monitor) SetBaudRate(rate int) error {
	dev := m.device()
	if dev == nil {
		return ErrNotConnected
	}
	if err := dev.SetBaudRate(rate); err != nil {
		return err
	}
	return dev.ResetBuffers()
}

// SetPacketTimeout hot-swaps the silence threshold used for packet
// boundaries. Rejects non-positive values, keeping the previous one.
func (m *Monitor) SetPacketTimeout(d time.Duration) error {
	return m.framer.setPacketTimeout(d)
}

// PacketTimeout returns the active silence threshold.
func (m *Monitor) PacketTimeout() time.Duration {
	return m.framer.packetTimeout.Load()
}

// SetEncoding swaps the active encoding. The previous encoding is kept when
// the name is unsupported.
func (m *Monitor) SetEncoding(name string) error {
	return m.framer.setEncoding(name)
}

// Encoding returns the active encoding's canonical name.
func (m *Monitor) Encoding() string {
	return m.framer.encoding()
}

// SetHexDisplay toggles hex rendering of every packet.
func (m *Monitor) SetHexDisplay(on bool) {
	m.framer.hexDisplay.Store(on)
}

// HexDisplay reports whether hex rendering is active.
func (m *Monitor) HexDisplay() bool {
	return m.framer.hexDisplay.Load()
}

// SetModbus toggles the minimal frame inspector.
func (m *Monitor) SetModbus(on bool) {
	m.framer.modbus.Store(on)
}

// Modbus reports whether the frame inspector is active.
func (m *Monitor) Modbus() bool {
	return m.framer.modbus.Load()
}

// Keywords returns the highlight filter table shared with the sink.
func (m *Monitor) Keywords() *inspect.Table {
	return m.keywords
}

// Stats returns an eventually-consistent snapshot of the counters.
func (m *Monitor) Stats() Stats {
	return m.stats.snapshot(m.relay.Dropped())
}

// State returns the connection lifecycle state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Close is idempotent: it flips the running flag, joins the reader and
// framer for up to the grace period, closes the sink, and releases the
// device. Goroutines still blocked in a device read observe the stop after
// at most one read-timeout interval.
func (m *Monitor) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.setState(StateClosing)
	wasRunning := m.running.Swap(false)
	close(m.stop)

	if wasRunning {
		m.join(m.opts.GracePeriod)
	}

	m.mu.Lock()
	dev := m.dev
	m.dev = nil
	m.mu.Unlock()

	var err error
	if dev != nil {
		err = dev.Close()
	}
	if m.out != nil {
		if e := m.out.Close(); e != nil && err == nil {
			err = e
		}
	}
	m.setState(StateDisconnected)
	return err
}

func (m *Monitor) join(grace time.Duration) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for _, done := range []chan struct{}{m.readerDone, m.framerDone} {
		select {
		case <-done:
		case <-timer.C:
			log.GetLogger().Warn("shutdown grace period elapsed, forcing device close")
			return
		}
	}
}

func (m *Monitor) device() serial.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
	metrics.ConnectionState.Set(float64(s))
}
