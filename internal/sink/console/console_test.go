package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/sink"
)

var eventTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestTextEventPlain(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Writer: &buf})

	s.OnPacket(sink.Event{Time: eventTime, Text: "hello", Encoding: "UTF-8"})
	assert.Equal(t, "RX(UTF-8): hello\n", buf.String())
}

func TestHexEventPlain(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Writer: &buf})

	s.OnPacket(sink.Event{Time: eventTime, Text: "DE AD", Hex: true})
	assert.Equal(t, "RX(hex): DE AD\n", buf.String())
}

func TestTimestampPrefix(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Writer: &buf, Timestamp: true})

	s.OnSend("ping", eventTime)
	assert.Equal(t, "[2025-03-14 09:26:53.589] TX: ping\n", buf.String())

	buf.Reset()
	s.SetTimestamp(false)
	s.OnSend("ping", eventTime)
	assert.Equal(t, "TX: ping\n", buf.String())
}

func TestColorOutputWrapsLine(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Writer: &buf, Color: true})

	s.OnSend("ping", eventTime)
	out := buf.String()
	assert.Contains(t, out, colorSend)
	assert.Contains(t, out, "TX: ping")
}

func TestKeywordHighlightingTextModeOnly(t *testing.T) {
	table := inspect.NewTable()
	_, err := table.Add("ERROR")
	require.NoError(t, err)

	var buf bytes.Buffer
	s := New(Options{Writer: &buf, Color: true, Keywords: table})

	s.OnPacket(sink.Event{Time: eventTime, Text: "boot ERROR", Encoding: "UTF-8"})
	assert.Contains(t, buf.String(), inspect.Palette[0]+"ERROR"+colorText)

	// Hex renderings are never highlighted, even if a keyword appears.
	buf.Reset()
	s.OnPacket(sink.Event{Time: eventTime, Text: "45 52 52 4F 52", Hex: true})
	assert.NotContains(t, buf.String(), inspect.Palette[0])
}

func TestFrameSummary(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Writer: &buf})

	s.OnPacket(sink.Event{Time: eventTime, Text: "modbus: station 1, Read Coils, address 0, quantity 1", Kind: sink.KindFrame})
	assert.Equal(t, "modbus: station 1, Read Coils, address 0, quantity 1\n", buf.String())
}
