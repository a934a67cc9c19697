package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/serial"
)

// fakeDevice scripts reads through a channel and records writes. Read blocks
// briefly like a real port with a read timeout, returning (0, nil) when no
// data is pending.
type fakeDevice struct {
	mu       sync.Mutex
	incoming chan []byte
	readErr  error
	writes   [][]byte
	writeErr error
	bauds    []int
	resets   int
	closed   bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{incoming: make(chan []byte, 64)}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	err := d.readErr
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	select {
	case data := <-d.incoming:
		return copy(p, data), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	d.writes = append(d.writes, buf)
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) SetBaudRate(rate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bauds = append(d.bauds, rate)
	return nil
}

func (d *fakeDevice) ResetBuffers() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

func (d *fakeDevice) failReads(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func withOpenDevice(t *testing.T, open func(serial.Options) (serial.Device, error)) {
	t.Helper()
	prev := openDevice
	openDevice = open
	t.Cleanup(func() { openDevice = prev })
}

func testOptions(out *recordSink) Options {
	return Options{
		Serial:        serial.Options{Port: "/dev/ttyTEST", BaudRate: 115200},
		PacketTimeout: 10 * time.Millisecond,
		RetryDelay:    time.Millisecond,
		GracePeriod:   time.Second,
		Sink:          out,
	}
}

func TestMonitorConnectRetriesAreBounded(t *testing.T) {
	attempts := 0
	withOpenDevice(t, func(serial.Options) (serial.Device, error) {
		attempts++
		return nil, errors.New("no such port")
	})

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)

	err = m.Start()
	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, DefaultConnectRetries, attempts)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestMonitorDeliversPackets(t *testing.T) {
	dev := newFakeDevice()
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	out := &recordSink{}
	m, err := New(testOptions(out))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	assert.Equal(t, StateOpen, m.State())
	dev.incoming <- []byte("hello")

	events := out.waitEvents(t, 1, 2*time.Second)
	assert.Equal(t, "hello", events[0].Text)
	assert.Equal(t, uint64(5), m.Stats().BytesReceived)
	assert.Equal(t, uint64(1), m.Stats().Packets)
}

func TestMonitorReconnectsAfterReadFailure(t *testing.T) {
	first := newFakeDevice()
	second := newFakeDevice()
	opened := 0
	withOpenDevice(t, func(serial.Options) (serial.Device, error) {
		opened++
		if opened == 1 {
			return first, nil
		}
		return second, nil
	})

	out := &recordSink{}
	m, err := New(testOptions(out))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	first.failReads(errors.New("device gone"))

	require.Eventually(t, func() bool { return opened >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, first.isClosed())

	second.incoming <- []byte("back")
	events := out.waitEvents(t, 1, 2*time.Second)
	assert.Equal(t, "back", events[0].Text)
	assert.GreaterOrEqual(t, m.Stats().Errors, uint64(1))
}

func TestMonitorSurfacesFatalWhenReconnectExhausted(t *testing.T) {
	dev := newFakeDevice()
	opened := 0
	withOpenDevice(t, func(serial.Options) (serial.Device, error) {
		opened++
		if opened == 1 {
			return dev, nil
		}
		return nil, errors.New("port unplugged")
	})

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	dev.failReads(errors.New("device gone"))

	select {
	case fatal := <-m.Fatal():
		assert.ErrorIs(t, fatal, ErrConnectionFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("fatal error never surfaced")
	}
	assert.Equal(t, StateDisconnected, m.State())
	// One transient read error plus the terminal failure.
	assert.GreaterOrEqual(t, m.Stats().Errors, uint64(2))
}

func TestMonitorSendPath(t *testing.T) {
	dev := newFakeDevice()
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	out := &recordSink{}
	m, err := New(testOptions(out))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	require.NoError(t, m.Send([]byte("ping\n"), "ping"))

	dev.mu.Lock()
	writes := len(dev.writes)
	dev.mu.Unlock()
	assert.Equal(t, 1, writes)
	assert.Equal(t, uint64(5), m.Stats().BytesSent)

	out.mu.Lock()
	sends := append([]string(nil), out.sends...)
	out.mu.Unlock()
	assert.Equal(t, []string{"ping"}, sends)
}

func TestMonitorSendRequiresOpenConnection(t *testing.T) {
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return newFakeDevice(), nil })

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send([]byte("x"), "x"), ErrNotConnected)
}

func TestMonitorSendWriteErrorCountsOnce(t *testing.T) {
	dev := newFakeDevice()
	dev.writeErr = errors.New("write failed")
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	require.Error(t, m.Send([]byte("x"), "x"))
	assert.Equal(t, uint64(1), m.Stats().Errors)
	assert.Equal(t, uint64(0), m.Stats().BytesSent)
}

func TestMonitorBaudRateChangeResetsBuffers(t *testing.T) {
	dev := newFakeDevice()
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()

	require.NoError(t, m.SetBaudRate(9600))

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, []int{9600}, dev.bauds)
	assert.Equal(t, 1, dev.resets)
}

func TestMonitorRuntimeSettersValidate(t *testing.T) {
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return newFakeDevice(), nil })

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetPacketTimeout(0), ErrInvalidTimeout)
	assert.Equal(t, 10*time.Millisecond, m.PacketTimeout())
	require.NoError(t, m.SetPacketTimeout(time.Second))
	assert.Equal(t, time.Second, m.PacketTimeout())

	require.Error(t, m.SetEncoding("KOI8-R"))
	assert.Equal(t, "UTF-8", m.Encoding())
	require.NoError(t, m.SetEncoding("GBK"))
	assert.Equal(t, "GBK", m.Encoding())

	assert.False(t, m.HexDisplay())
	m.SetHexDisplay(true)
	assert.True(t, m.HexDisplay())

	assert.False(t, m.Modbus())
	m.SetModbus(true)
	assert.True(t, m.Modbus())
}

func TestMonitorSharesKeywordTable(t *testing.T) {
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return newFakeDevice(), nil })

	table := inspect.NewTable()
	_, err := table.Add("ERROR")
	require.NoError(t, err)

	opts := testOptions(&recordSink{})
	opts.Keywords = table
	m, err := New(opts)
	require.NoError(t, err)
	assert.Same(t, table, m.Keywords())

	// Nil table means an empty one.
	m2, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	assert.Equal(t, 0, m2.Keywords().Len())
}

func TestMonitorCloseIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	out := &recordSink{}
	m, err := New(testOptions(out))
	require.NoError(t, err)
	require.NoError(t, m.Start())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.True(t, dev.isClosed())
	assert.Equal(t, 1, out.closed)
	assert.Equal(t, StateDisconnected, m.State())
	assert.ErrorIs(t, m.Send([]byte("x"), "x"), ErrClosed)
}

func TestMonitorCloseCompletesUnderTraffic(t *testing.T) {
	dev := newFakeDevice()
	withOpenDevice(t, func(serial.Options) (serial.Device, error) { return dev, nil })

	m, err := New(testOptions(&recordSink{}))
	require.NoError(t, err)
	require.NoError(t, m.Start())

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case dev.incoming <- []byte("burst"):
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}()
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, m.Close())
	close(stop)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, dev.isClosed())
}
