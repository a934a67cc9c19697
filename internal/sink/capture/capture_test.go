package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ttyscope/internal/sink"
)

var eventTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestDisabledSinkDropsEvents(t *testing.T) {
	s := New()
	s.OnPacket(sink.Event{Time: eventTime, Text: "dropped", Encoding: "UTF-8"})
	s.OnSend("dropped", eventTime)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Close())
}

func TestRecordsRecvAndSendLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	s := New()
	require.NoError(t, s.Enable(path))
	assert.True(t, s.Enabled())
	assert.Equal(t, path, s.Path())

	s.OnPacket(sink.Event{Time: eventTime, Text: "hello", Encoding: "UTF-8"})
	s.OnPacket(sink.Event{Time: eventTime, Text: "DE AD", Hex: true})
	s.OnSend("ping", eventTime)
	// Frame summaries must not reach the session log.
	s.OnPacket(sink.Event{Time: eventTime, Text: "modbus: ...", Kind: sink.KindFrame})

	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "2025-03-14 09:26:53.589 - RECV(UTF-8) - hello\n")
	assert.Contains(t, content, "2025-03-14 09:26:53.589 - RECV(hex) - DE AD\n")
	assert.Contains(t, content, "2025-03-14 09:26:53.589 - SEND - ping\n")
	assert.NotContains(t, content, "modbus")
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	s := New()
	require.NoError(t, s.Enable(path))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Enabled())
}

func TestDefaultPath(t *testing.T) {
	p := DefaultPath("/tmp")
	assert.Contains(t, p, "/tmp/ttyscope_")
	assert.Contains(t, p, ".log")
}
