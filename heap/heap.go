package heap

import (
	"fmt"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/internal/utils"
	"github.com/classicmac/memshim/memutils"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

type blockKind uint8

const (
	blockKindFixed blockKind = iota
	blockKindMovable
	blockKindMaster
)

var blockKindMapping = map[blockKind]string{
	blockKindFixed:   "Fixed",
	blockKindMovable: "Movable",
	blockKindMaster:  "MasterPointers",
}

func (k blockKind) String() string {
	return blockKindMapping[k]
}

// block is the heap's record of one live allocation. size is what the guest asked for and may
// access; reserved is what free tracking holds for it.
type block struct {
	base     guest.Address
	size     uint32
	reserved uint32
	kind     blockKind
	alloc    metadata.BlockAllocationHandle
	cell     guest.Address
}

func (b *block) end() uint64 {
	return uint64(b.base) + uint64(b.reserved)
}

// Heap is the emulated Memory Manager zone of one guest. Every byte it hands out, including the
// master pointer cells behind handles, lives inside the guest address space.
//
// Operations that fail in a way the guest is meant to observe return a zero address or false and
// record a StatusCode for MemError. A non-nil error is always fatal to the session: it is either
// an access fault from guest.Memory, passed through unchanged, or an internal consistency fault
// marked ErrUntrackedBlock or ErrCorrupted.
type Heap struct {
	logger *slog.Logger
	mem    guest.Memory
	mutex  utils.OptionalMutex

	base           guest.Address
	alignment      uint32
	cellsPerMaster int
	strategy       metadata.AllocationStrategy
	metadata       metadata.BlockMetadata

	pointers  *swiss.Map[guest.Address, *block]
	handles   *swiss.Map[guest.Address, *block]
	masters   []*block
	freeCells []guest.Address

	lastErr StatusCode
}

func formatAddress(addr guest.Address) string {
	return fmt.Sprintf("%08X", addr)
}

type validateFunc func() error

func (f validateFunc) Validate() error { return f() }

func (h *Heap) debugValidate() {
	memutils.DebugValidate(validateFunc(h.validate))
}

func (h *Heap) reservedSize(size uint32) (uint32, bool) {
	if size == 0 {
		size = 1
	}

	reserved := memutils.AlignUp(uint64(size), uint64(h.alignment))
	if reserved > uint64(h.metadata.Size()) {
		return 0, false
	}
	return uint32(reserved), true
}

// reserve carves a new block out of free tracking. It returns nil when no free region can hold it.
func (h *Heap) reserve(size uint32, kind blockKind) (*block, error) {
	reserved, ok := h.reservedSize(size)
	if !ok {
		return nil, nil
	}

	success, req, err := h.metadata.CreateAllocationRequest(int(reserved), uint(h.alignment), h.strategy)
	if err != nil {
		return nil, corruptedError(err, "failed to search for %d free bytes", reserved)
	}
	if !success {
		return nil, nil
	}

	b := &block{
		base:     h.base + guest.Address(req.Offset),
		size:     size,
		reserved: reserved,
		kind:     kind,
		alloc:    req.BlockAllocationHandle,
	}

	err = h.metadata.Alloc(req, b)
	if err != nil {
		return nil, corruptedError(err, "failed to commit %d bytes at %08X", reserved, b.base)
	}

	return b, nil
}

func (h *Heap) release(b *block) error {
	err := h.metadata.Free(b.alloc)
	if err != nil {
		return corruptedError(err, "failed to release the %s block at %08X", b.kind, b.base)
	}
	return nil
}

// rollback releases b after a failure and folds any release failure into cause
func (h *Heap) rollback(b *block, cause error) error {
	return errors.CombineErrors(cause, h.release(b))
}

// MemError returns the status recorded by the most recent heap operation
func (h *Heap) MemError() StatusCode {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.lastErr
}

// NewPtr reserves a nonrelocatable block of size bytes and returns its base address. When clear
// is set the block is zero-filled. If the zone has no room it returns guest.Nil and MemError
// reports MemFullErr.
func (h *Heap) NewPtr(size uint32, clear bool) (guest.Address, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::NewPtr", slog.Uint64("size", uint64(size)), slog.Bool("clear", clear))

	b, err := h.reserve(size, blockKindFixed)
	if err != nil {
		return guest.Nil, err
	}
	if b == nil {
		h.lastErr = MemFullErr
		return guest.Nil, nil
	}

	if clear {
		err = guest.Fill(h.mem, b.base, size, 0)
		if err != nil {
			return guest.Nil, h.rollback(b, err)
		}
	}

	h.pointers.Put(b.base, b)
	h.lastErr = NoErr
	h.debugValidate()

	return b.base, nil
}

// NewHandle reserves a relocatable block of size bytes plus a master pointer cell holding its
// base address, and returns the address of the cell. When clear is set the block is zero-filled.
// If the zone has no room for the block, or for another master block when every cell is in use,
// it returns guest.Nil and MemError reports MemFullErr.
func (h *Heap) NewHandle(size uint32, clear bool) (guest.Address, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::NewHandle", slog.Uint64("size", uint64(size)), slog.Bool("clear", clear))

	b, err := h.reserve(size, blockKindMovable)
	if err != nil {
		return guest.Nil, err
	}
	if b == nil {
		h.lastErr = MemFullErr
		return guest.Nil, nil
	}

	cell, err := h.takeCell()
	if err != nil {
		return guest.Nil, h.rollback(b, err)
	}
	if cell == guest.Nil {
		err = h.release(b)
		if err != nil {
			return guest.Nil, err
		}
		h.lastErr = MemFullErr
		return guest.Nil, nil
	}

	if clear {
		err = guest.Fill(h.mem, b.base, size, 0)
		if err != nil {
			h.returnCell(cell)
			return guest.Nil, h.rollback(b, err)
		}
	}

	err = h.mem.WriteU32(cell, b.base)
	if err != nil {
		h.returnCell(cell)
		return guest.Nil, h.rollback(b, err)
	}

	b.cell = cell
	h.handles.Put(cell, b)
	h.lastErr = NoErr
	h.debugValidate()

	return cell, nil
}

// DisposePtr releases the nonrelocatable block at ptr. Disposing guest.Nil does nothing.
func (h *Heap) DisposePtr(ptr guest.Address) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::DisposePtr", slog.String("ptr", formatAddress(ptr)))

	if ptr == guest.Nil {
		h.lastErr = NoErr
		return nil
	}

	b, ok := h.pointers.Get(ptr)
	if !ok {
		return untrackedError("pointer", ptr)
	}

	err := h.release(b)
	if err != nil {
		return err
	}

	h.pointers.Delete(ptr)
	h.lastErr = NoErr
	h.debugValidate()

	return nil
}

// DisposeHandle releases the relocatable block behind handle and its master pointer cell. The
// cell is cleared before it is returned to the free cell list. Disposing guest.Nil does nothing.
func (h *Heap) DisposeHandle(handle guest.Address) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::DisposeHandle", slog.String("handle", formatAddress(handle)))

	if handle == guest.Nil {
		h.lastErr = NoErr
		return nil
	}

	b, ok := h.handles.Get(handle)
	if !ok {
		return untrackedError("handle", handle)
	}

	err := h.mem.WriteU32(handle, 0)
	if err != nil {
		return err
	}

	err = h.release(b)
	if err != nil {
		return err
	}

	h.handles.Delete(handle)
	h.returnCell(handle)
	h.lastErr = NoErr
	h.debugValidate()

	return nil
}

// GetPtrSize returns the logical size of the nonrelocatable block at ptr. For guest.Nil it
// returns 0 and MemError reports NilHandleErr.
func (h *Heap) GetPtrSize(ptr guest.Address) (uint32, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::GetPtrSize", slog.String("ptr", formatAddress(ptr)))

	b, err := h.lookup(h.pointers, "pointer", ptr)
	if err != nil || b == nil {
		return 0, err
	}

	h.lastErr = NoErr
	return b.size, nil
}

// GetHandleSize returns the logical size of the relocatable block behind handle. For guest.Nil it
// returns 0 and MemError reports NilHandleErr.
func (h *Heap) GetHandleSize(handle guest.Address) (uint32, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::GetHandleSize", slog.String("handle", formatAddress(handle)))

	b, err := h.lookup(h.handles, "handle", handle)
	if err != nil || b == nil {
		return 0, err
	}

	h.lastErr = NoErr
	return b.size, nil
}

// lookup finds the record for addr. A nil address yields no record and NilHandleErr; an address
// that is not in table is a fault.
func (h *Heap) lookup(table *swiss.Map[guest.Address, *block], kind string, addr guest.Address) (*block, error) {
	if addr == guest.Nil {
		h.lastErr = NilHandleErr
		return nil, nil
	}

	b, ok := table.Get(addr)
	if !ok {
		return nil, untrackedError(kind, addr)
	}
	return b, nil
}

// resizeInPlace changes the reservation of b without moving it. It returns false, changing
// nothing, when the bytes after b are not free.
func (h *Heap) resizeInPlace(b *block, newSize uint32, newReserved uint32) (bool, error) {
	if newReserved != b.reserved {
		ok, err := h.metadata.Resize(b.alloc, int(newReserved))
		if err != nil {
			return false, corruptedError(err, "failed to resize the %s block at %08X", b.kind, b.base)
		}
		if !ok {
			return false, nil
		}
		b.reserved = newReserved
	}

	b.size = newSize
	return true, nil
}

// SetPtrSize resizes the nonrelocatable block at ptr without moving it. Shrinking always succeeds.
// Growing fails with MemFullErr, leaving the block's size and contents untouched, when the bytes
// after it are not free. The contents of newly available bytes are unspecified.
func (h *Heap) SetPtrSize(ptr guest.Address, newSize uint32) (bool, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::SetPtrSize", slog.String("ptr", formatAddress(ptr)), slog.Uint64("newSize", uint64(newSize)))

	b, err := h.lookup(h.pointers, "pointer", ptr)
	if err != nil || b == nil {
		return false, err
	}

	newReserved, ok := h.reservedSize(newSize)
	if !ok {
		h.lastErr = MemFullErr
		return false, nil
	}

	ok, err = h.resizeInPlace(b, newSize, newReserved)
	if err != nil {
		return false, err
	}
	if !ok {
		h.lastErr = MemFullErr
		return false, nil
	}

	h.lastErr = NoErr
	h.debugValidate()
	return true, nil
}

// SetHandleSize resizes the relocatable block behind handle. When the block cannot change size
// where it is, it is moved: a new block is reserved, the surviving bytes are copied, the master
// pointer cell is pointed at the new block and only then is the old block released. The handle
// never changes. If no placement can hold newSize bytes it returns false with MemFullErr and
// nothing is changed.
func (h *Heap) SetHandleSize(handle guest.Address, newSize uint32) (bool, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::SetHandleSize", slog.String("handle", formatAddress(handle)), slog.Uint64("newSize", uint64(newSize)))

	b, err := h.lookup(h.handles, "handle", handle)
	if err != nil || b == nil {
		return false, err
	}

	newReserved, ok := h.reservedSize(newSize)
	if !ok {
		h.lastErr = MemFullErr
		return false, nil
	}

	ok, err = h.resizeInPlace(b, newSize, newReserved)
	if err != nil {
		return false, err
	}
	if ok {
		h.lastErr = NoErr
		h.debugValidate()
		return true, nil
	}

	moved, err := h.reserve(newSize, blockKindMovable)
	if err != nil {
		return false, err
	}
	if moved == nil {
		h.lastErr = MemFullErr
		return false, nil
	}

	h.logger.Debug("    Heap::SetHandleSize relocating",
		slog.String("from", formatAddress(b.base)),
		slog.String("to", formatAddress(moved.base)),
	)

	keep := b.size
	if newSize < keep {
		keep = newSize
	}

	err = guest.BlockCopy(h.mem, b.base, moved.base, keep)
	if err != nil {
		return false, h.rollback(moved, err)
	}

	err = h.mem.WriteU32(handle, moved.base)
	if err != nil {
		return false, h.rollback(moved, err)
	}

	err = h.release(b)
	if err != nil {
		return false, err
	}

	moved.cell = handle
	h.handles.Put(handle, moved)
	h.lastErr = NoErr
	h.debugValidate()

	return true, nil
}

// RecoverHandle returns the handle whose master pointer holds ptr. If no handle does, it returns
// guest.Nil and MemError reports MemAZErr.
func (h *Heap) RecoverHandle(ptr guest.Address) guest.Address {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::RecoverHandle", slog.String("ptr", formatAddress(ptr)))

	handle := guest.Nil
	h.handles.Iter(func(cell guest.Address, b *block) bool {
		if b.base == ptr {
			handle = cell
			return true
		}
		return false
	})

	if handle == guest.Nil {
		h.lastErr = MemAZErr
		return guest.Nil
	}

	h.lastErr = NoErr
	return handle
}

// FreeMem returns the total number of free bytes in the zone
func (h *Heap) FreeMem() uint32 {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.lastErr = NoErr
	return uint32(h.metadata.SumFreeSize())
}

// MaxBlock returns the size of the largest block that could be allocated right now
func (h *Heap) MaxBlock() uint32 {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.lastErr = NoErr
	return uint32(h.metadata.LargestFreeRegion())
}

// MoreMasters reserves another master block so later handle allocations do not need to. When the
// zone has no room it returns false and MemError reports MemFullErr.
func (h *Heap) MoreMasters() (bool, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.logger.Debug("Heap::MoreMasters")

	ok, err := h.addMasterBlock()
	if err != nil {
		return false, err
	}
	if !ok {
		h.lastErr = MemFullErr
		return false, nil
	}

	h.lastErr = NoErr
	h.debugValidate()
	return true, nil
}
