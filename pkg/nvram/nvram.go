// Package nvram models the byte-addressed non-volatile memory that holds
// the calibration table. Values are 32-bit signed integers split into four
// bytes, least significant byte first, exactly as the machine lays them out
// in EEPROM. There is no header, checksum or versioning, and a write is not
// atomic across its four bytes.
package nvram

// Int32Size is the number of bytes one stored value occupies.
const Int32Size = 4

// Store reads and writes 32-bit signed values at fixed byte addresses.
type Store interface {
	Write(addr int, v int32)
	Read(addr int) int32
}

// EncodeInt32 encodes v into dst[0:4] in little-endian byte order.
// dst must be at least 4 bytes long.
func EncodeInt32(dst []byte, v int32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// DecodeInt32 reconstructs a value encoded by EncodeInt32 from src[0:4].
func DecodeInt32(src []byte) int32 {
	return int32(src[0]) |
		int32(src[1])<<8 |
		int32(src[2])<<16 |
		int32(src[3])<<24
}

// erasedByte is the value every cell holds before its first write. The
// real part erases to all bits set, so a never-calibrated slot decodes to
// -1 and behaves as the manual-stop sentinel rather than a zero threshold.
const erasedByte = 0xFF

// Memory is an in-memory Store. Cells read before any write return the
// erased pattern, so an unwritten slot decodes to -1 like a factory-fresh
// part.
type Memory struct {
	cells []byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store with the given capacity in bytes.
func NewMemory(size int) *Memory {
	m := &Memory{}
	m.grow(size)
	return m
}

// Write stores v at the given byte address.
func (m *Memory) Write(addr int, v int32) {
	m.grow(addr + Int32Size)
	EncodeInt32(m.cells[addr:], v)
}

// Read returns the value stored at the given byte address.
func (m *Memory) Read(addr int) int32 {
	m.grow(addr + Int32Size)
	return DecodeInt32(m.cells[addr:])
}

// Bytes returns the backing image. The caller must not hold the slice
// across subsequent writes.
func (m *Memory) Bytes() []byte {
	return m.cells
}

// Load replaces the backing image with a copy of b.
func (m *Memory) Load(b []byte) {
	m.cells = make([]byte, len(b))
	copy(m.cells, b)
}

func (m *Memory) grow(n int) {
	if n <= len(m.cells) {
		return
	}
	cells := make([]byte, n)
	copy(cells, m.cells)
	for i := len(m.cells); i < n; i++ {
		cells[i] = erasedByte
	}
	m.cells = cells
}
