package monitor

import "errors"

var (
	// ErrNotConnected is returned by operations that need an open device.
	ErrNotConnected = errors.New("monitor: not connected")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("monitor: closed")

	// ErrConnectionFailed reports that every connection attempt failed.
	ErrConnectionFailed = errors.New("monitor: connection failed")

	// ErrInvalidTimeout rejects a non-positive packet timeout. The previous
	// timeout stays in effect.
	ErrInvalidTimeout = errors.New("monitor: packet timeout must be positive")
)
