package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectReadHoldingRegisters(t *testing.T) {
	f := NewFrameInspector()

	// Station 1, function 3, address 10, quantity 2.
	frame := []byte{0x01, 0x03, 0x00, 0x0A, 0x00, 0x02, 0xE4, 0x09}
	summary, ok := f.Inspect(frame)
	require.True(t, ok)
	assert.Equal(t, "modbus: station 1, Read Holding Registers, address 10, quantity 2", summary)
}

func TestInspectWriteSingleRegister(t *testing.T) {
	f := NewFrameInspector()

	frame := []byte{0x11, 0x06, 0x00, 0x01, 0x00, 0x03, 0x9A, 0x9B}
	summary, ok := f.Inspect(frame)
	require.True(t, ok)
	assert.Equal(t, "modbus: station 17, Write Single Register, address 1, value 3", summary)
}

func TestInspectWriteMultipleRegisters(t *testing.T) {
	f := NewFrameInspector()

	frame := []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02}
	summary, ok := f.Inspect(frame)
	require.True(t, ok)
	assert.Equal(t, "modbus: station 1, Write Multiple Registers, address 1, quantity 2, byte count 4", summary)
}

func TestInspectShortFrameSkipped(t *testing.T) {
	f := NewFrameInspector()

	_, ok := f.Inspect([]byte{0x01, 0x03, 0x00, 0x0A, 0x00, 0x02, 0xE4})
	assert.False(t, ok, "frames under 8 bytes are skipped, not an error")
}

func TestInspectUnknownFunctionCode(t *testing.T) {
	f := NewFrameInspector()

	frame := []byte{0x05, 0x2B, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	summary, ok := f.Inspect(frame)
	require.True(t, ok)
	assert.Equal(t, "modbus: station 5, unknown function 0x2B", summary)
}

func TestRegisterCustomDialect(t *testing.T) {
	f := NewFrameInspector()
	f.Register(0x41, "Vendor Ping", func(data []byte) string { return "no fields" })

	frame := []byte{0x02, 0x41, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	summary, ok := f.Inspect(frame)
	require.True(t, ok)
	assert.Equal(t, "modbus: station 2, Vendor Ping, no fields", summary)
}
