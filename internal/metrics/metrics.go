// Package metrics implements Prometheus metrics for the monitor pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BytesReceivedTotal counts bytes read from the device.
	BytesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttyscope_bytes_received_total",
			Help: "Total number of bytes read from the serial device",
		},
	)

	// BytesSentTotal counts bytes written to the device.
	BytesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttyscope_bytes_sent_total",
			Help: "Total number of bytes written to the serial device",
		},
	)

	// PacketsTotal counts packets flushed by the framer.
	PacketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttyscope_packets_total",
			Help: "Total number of packets assembled by the framer",
		},
	)

	// RelayDroppedTotal counts chunks evicted by the relay's drop-oldest
	// overflow policy.
	RelayDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttyscope_relay_dropped_total",
			Help: "Total number of chunks evicted from the relay buffer",
		},
	)

	// ErrorsTotal counts device I/O errors by stage.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttyscope_errors_total",
			Help: "Total number of device I/O errors",
		},
		[]string{"stage"},
	)

	// ConnectionState tracks the connection lifecycle
	// (0=disconnected, 1=connecting, 2=open, 3=closing).
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttyscope_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=open, 3=closing)",
		},
	)
)
