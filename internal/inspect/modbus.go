package inspect

import (
	"encoding/binary"
	"fmt"
)

// minFrameLen is the shortest frame the inspector will look at. Shorter
// packets are skipped without error.
const minFrameLen = 8

// FieldDecoder renders the function-specific fields of a frame. data is the
// full frame including station and function bytes.
type FieldDecoder func(data []byte) string

type codeEntry struct {
	name   string
	decode FieldDecoder
}

// FrameInspector summarizes fixed-field request frames (Modbus RTU style):
// byte 0 is the station id, byte 1 the function code, and the remaining
// layout depends on the function family. The code table is pluggable so
// additional dialects can be registered without touching the framing core.
type FrameInspector struct {
	codes map[byte]codeEntry
}

// NewFrameInspector returns an inspector preloaded with the standard
// read/write function families.
func NewFrameInspector() *FrameInspector {
	f := &FrameInspector{codes: make(map[byte]codeEntry)}

	f.Register(1, "Read Coils", decodeAddrQuantity)
	f.Register(2, "Read Discrete Inputs", decodeAddrQuantity)
	f.Register(3, "Read Holding Registers", decodeAddrQuantity)
	f.Register(4, "Read Input Registers", decodeAddrQuantity)
	f.Register(5, "Write Single Coil", decodeAddrValue)
	f.Register(6, "Write Single Register", decodeAddrValue)
	f.Register(15, "Write Multiple Coils", decodeAddrQuantityCount)
	f.Register(16, "Write Multiple Registers", decodeAddrQuantityCount)
	return f
}

// Register installs or replaces the decode strategy for a function code.
func (f *FrameInspector) Register(code byte, name string, decode FieldDecoder) {
	f.codes[code] = codeEntry{name: name, decode: decode}
}

// Inspect summarizes one flushed packet. The second return value is false
// when the packet is too short to be a frame; unknown function codes still
// produce a generic summary.
func (f *FrameInspector) Inspect(data []byte) (string, bool) {
	if len(data) < minFrameLen {
		return "", false
	}
	station := data[0]
	code := data[1]

	entry, ok := f.codes[code]
	if !ok {
		return fmt.Sprintf("modbus: station %d, unknown function 0x%02X", station, code), true
	}
	return fmt.Sprintf("modbus: station %d, %s, %s", station, entry.name, entry.decode(data)), true
}

func decodeAddrQuantity(data []byte) string {
	addr := binary.BigEndian.Uint16(data[2:4])
	qty := binary.BigEndian.Uint16(data[4:6])
	return fmt.Sprintf("address %d, quantity %d", addr, qty)
}

func decodeAddrValue(data []byte) string {
	addr := binary.BigEndian.Uint16(data[2:4])
	value := binary.BigEndian.Uint16(data[4:6])
	return fmt.Sprintf("address %d, value %d", addr, value)
}

func decodeAddrQuantityCount(data []byte) string {
	addr := binary.BigEndian.Uint16(data[2:4])
	qty := binary.BigEndian.Uint16(data[4:6])
	return fmt.Sprintf("address %d, quantity %d, byte count %d", addr, qty, data[6])
}
