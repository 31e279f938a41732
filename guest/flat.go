package guest

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Flat is a Memory backed by a single host buffer mapped at guest address 0. It is the address
// space the command line tool boots and the one tests run against. Accesses that touch any
// byte at or beyond Size fault.
type Flat struct {
	data []byte
}

var _ Memory = &Flat{}

// NewFlat maps a zero-filled address space of size bytes
func NewFlat(size uint32) *Flat {
	return &Flat{data: make([]byte, size)}
}

// Size returns the number of mapped bytes
func (m *Flat) Size() uint32 { return uint32(len(m.data)) }

// Bytes exposes the backing buffer. Mutating it bypasses fault checks.
func (m *Flat) Bytes() []byte { return m.data }

func (m *Flat) inRange(addr Address, size int) bool {
	return uint64(addr)+uint64(size) <= uint64(len(m.data))
}

func (m *Flat) ReadU8(addr Address) (uint8, error) {
	if !m.inRange(addr, 1) {
		return 0, newAccessFault(AccessRead, addr, 1)
	}
	return m.data[addr], nil
}

func (m *Flat) WriteU8(addr Address, value uint8) error {
	if !m.inRange(addr, 1) {
		return newAccessFault(AccessWrite, addr, 1)
	}
	m.data[addr] = value
	return nil
}

func (m *Flat) ReadU32(addr Address) (uint32, error) {
	if !m.inRange(addr, 4) {
		return 0, newAccessFault(AccessRead, addr, 4)
	}
	return binary.BigEndian.Uint32(m.data[addr:]), nil
}

func (m *Flat) WriteU32(addr Address, value uint32) error {
	if !m.inRange(addr, 4) {
		return newAccessFault(AccessWrite, addr, 4)
	}
	binary.BigEndian.PutUint32(m.data[addr:], value)
	return nil
}

// Load copies data into the address space starting at addr
func (m *Flat) Load(addr Address, data []byte) error {
	if !m.inRange(addr, len(data)) {
		return errors.Wrapf(newAccessFault(AccessWrite, addr, len(data)), "loading %d bytes", len(data))
	}
	copy(m.data[addr:], data)
	return nil
}

// Dump returns a copy of length bytes starting at addr
func (m *Flat) Dump(addr Address, length uint32) ([]byte, error) {
	if !m.inRange(addr, int(length)) {
		return nil, newAccessFault(AccessRead, addr, int(length))
	}
	out := make([]byte, length)
	copy(out, m.data[addr:])
	return out, nil
}
