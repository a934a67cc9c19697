// Package serial wraps the physical port behind the Device contract the
// monitor core consumes. Reads honor a timeout and may return zero bytes;
// short reads are normal.
package serial

import (
	"fmt"
	"strings"
	"time"

	gobug "go.bug.st/serial"
)

// Device is the byte-source contract consumed by the monitor core.
type Device interface {
	// Read blocks for at most the configured read timeout and returns
	// 0..len(p) bytes. A timeout is (0, nil), not an error.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	// SetBaudRate reconfigures the line speed without reopening the port.
	SetBaudRate(rate int) error
	// ResetBuffers discards pending driver input and output.
	ResetBuffers() error
}

// Options describes how to open a port. Only the baud rate may change
// during a connection's lifetime.
type Options struct {
	Port         string
	BaudRate     int
	DataBits     int
	Parity       string // none | odd | even
	StopBits    int // 1 | 2
	ReadTimeout time.Duration
	// WriteTimeout is advisory: the driver exposes no write deadline, so
	// writes block until the output buffer drains.
	WriteTimeout time.Duration
}

// openPort is replaced in tests.
var openPort = func(name string, mode *gobug.Mode) (gobug.Port, error) {
	return gobug.Open(name, mode)
}

func parity(name string) (gobug.Parity, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return gobug.NoParity, nil
	case "odd":
		return gobug.OddParity, nil
	case "even":
		return gobug.EvenParity, nil
	}
	return gobug.NoParity, fmt.Errorf("serial: unknown parity %q", name)
}

func stopBits(n int) (gobug.StopBits, error) {
	switch n {
	case 0, 1:
		return gobug.OneStopBit, nil
	case 2:
		return gobug.TwoStopBits, nil
	}
	return gobug.OneStopBit, fmt.Errorf("serial: unsupported stop bits %d", n)
}

func mode(opts Options) (*gobug.Mode, error) {
	par, err := parity(opts.Parity)
	if err != nil {
		return nil, err
	}
	sb, err := stopBits(opts.StopBits)
	if err != nil {
		return nil, err
	}
	dataBits := opts.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	return &gobug.Mode{
		BaudRate: opts.BaudRate,
		DataBits: dataBits,
		Parity:   par,
		StopBits: sb,
	}, nil
}

type device struct {
	port gobug.Port
	mode gobug.Mode
}

// Open opens the port described by opts and applies the read timeout.
func Open(opts Options) (Device, error) {
	m, err := mode(opts)
	if err != nil {
		return nil, err
	}
	p, err := openPort(opts.Port, m)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", opts.Port, err)
	}
	if opts.ReadTimeout > 0 {
		if err := p.SetReadTimeout(opts.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("serial: set read timeout: %w", err)
		}
	}
	return &device{port: p, mode: *m}, nil
}

func (d *device) Read(p []byte) (int, error)  { return d.port.Read(p) }
func (d *device) Write(p []byte) (int, error) { return d.port.Write(p) }
func (d *device) Close() error                { return d.port.Close() }

func (d *device) SetBaudRate(rate int) error {
	m := d.mode
	m.BaudRate = rate
	if err := d.port.SetMode(&m); err != nil {
		return fmt.Errorf("serial: set baud rate %d: %w", rate, err)
	}
	d.mode = m
	return nil
}

func (d *device) ResetBuffers() error {
	if err := d.port.ResetInputBuffer(); err != nil {
		return err
	}
	return d.port.ResetOutputBuffer()
}
