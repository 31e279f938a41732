package guest

//go:generate mockgen -source=memory.go -destination=mocks/memory.go -package=mock_guest

// Address is an offset into the guest's 32-bit linear address space. It is never dereferenced
// on the host, only handed to a Memory.
type Address = uint32

// Nil is the guest null address. It is never a valid block, handle or master pointer cell.
const Nil Address = 0

// Memory is the only channel through which guest-visible data may be observed or mutated. The
// guest address space is big-endian. Any error returned by an implementation is an access fault
// and callers in this module propagate it unchanged: it is never retried or masked.
type Memory interface {
	// ReadU8 reads the byte at addr
	ReadU8(addr Address) (uint8, error)
	// WriteU8 writes value to the byte at addr
	WriteU8(addr Address, value uint8) error
	// ReadU32 reads the big-endian 32-bit word starting at addr
	ReadU32(addr Address) (uint32, error)
	// WriteU32 writes value as a big-endian 32-bit word starting at addr
	WriteU32(addr Address, value uint32) error
}
