package shim_test

import (
	"io"
	"testing"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/heap"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/classicmac/memshim/shim"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

const (
	zoneBase   guest.Address = 0x1000
	scratch    guest.Address = 0x8000
	outputCell guest.Address = 0x9000
)

func newSession(t *testing.T, zoneSize uint32) (*shim.Session, *guest.Flat) {
	t.Helper()

	mem := guest.NewFlat(0x10000)
	logger := slog.New(slog.NewTextHandler(io.Discard))
	session, err := shim.NewSession(logger, mem, heap.CreateOptions{
		Flags:          heap.CreateExternallySynchronized,
		Base:           zoneBase,
		Size:           zoneSize,
		MasterPointers: 4,
		Strategy:       metadata.AllocationStrategyMinOffset,
	})
	require.NoError(t, err)
	return session, mem
}

func memoryManager(t *testing.T) *shim.Table {
	t.Helper()

	table, err := shim.NewTable(shim.MemoryManager()...)
	require.NoError(t, err)
	return table
}

// call invokes name and returns its value, failing the test on an error or a void result
func call(t *testing.T, table *shim.Table, s *shim.Session, name string, args ...uint32) uint32 {
	t.Helper()

	result, err := table.Call(s, name, shim.Values(args))
	require.NoError(t, err)
	value, ok := result.Value()
	require.True(t, ok, "%s returned nothing", name)
	return value
}

func callVoid(t *testing.T, table *shim.Table, s *shim.Session, name string, args ...uint32) {
	t.Helper()

	result, err := table.Call(s, name, shim.Values(args))
	require.NoError(t, err)
	_, ok := result.Value()
	require.False(t, ok, "%s returned a value", name)
}

func load(t *testing.T, mem *guest.Flat, addr guest.Address, data ...byte) {
	t.Helper()
	require.NoError(t, mem.Load(addr, data))
}

func dump(t *testing.T, mem *guest.Flat, addr guest.Address, length uint32) []byte {
	t.Helper()

	data, err := mem.Dump(addr, length)
	require.NoError(t, err)
	return data
}

func deref(t *testing.T, mem guest.Memory, handle guest.Address) guest.Address {
	t.Helper()

	base, err := mem.ReadU32(handle)
	require.NoError(t, err)
	return base
}
