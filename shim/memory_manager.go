package shim

import (
	"math"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/heap"
)

// MemoryManager returns the definitions of the Memory Manager traps. Locking, purging and
// relocation hints are accepted and ignored: blocks never move except when SetHandleSize grows
// them, and nothing is ever purged.
func MemoryManager() []Def {
	defs := []Def{
		{Name: "NewHandle", Aliases: []string{"NewHandleSys"}, Handler: newHandle(false)},
		{Name: "NewHandleClear", Aliases: []string{"NewHandleSysClear"}, Handler: newHandle(true)},
		{Name: "NewPtr", Aliases: []string{"NewPtrSys"}, Handler: newPtr(false)},
		{Name: "NewPtrClear", Aliases: []string{"NewPtrSysClear"}, Handler: newPtr(true)},
		{Name: "DisposeHandle", Handler: disposeHandle},
		{Name: "DisposePtr", Handler: disposePtr},
		{Name: "GetHandleSize", Handler: getHandleSize},
		{Name: "GetPtrSize", Handler: getPtrSize},
		{Name: "SetHandleSize", Handler: setHandleSize},
		{Name: "SetPtrSize", Handler: setPtrSize},
		{Name: "BlockMoveData", Aliases: []string{"BlockMove"}, Handler: blockMoveData},
		{Name: "PtrAndHand", Handler: ptrAndHand},
		{Name: "HandAndHand", Handler: handAndHand},
		{Name: "PtrToHand", Handler: ptrToHand},
		{Name: "PtrToXHand", Handler: ptrToXHand},
		{Name: "HandToHand", Handler: handToHand},
		{Name: "RecoverHandle", Handler: recoverHandle},
		{Name: "MemError", Handler: memError},
		{Name: "FreeMem", Handler: freeMem},
		{Name: "MaxBlock", Handler: maxBlock},
		{Name: "MaxMem", Handler: maxMem},
		{Name: "CompactMem", Handler: compactMem},
		{Name: "MoreMasters", Handler: moreMasters},
		{Name: "HGetState", Handler: hGetState},
	}

	for _, name := range []string{
		"HLock", "HUnlock", "HLockHi", "MoveHHi", "HSetState",
		"HPurge", "HNoPurge", "HSetRBit", "HClrRBit", "PurgeMem",
	} {
		defs = append(defs, Def{Name: name, Handler: stubVoid})
	}

	return defs
}

func stubVoid(s *Session, args ArgReader) (Result, error) {
	return Void(), nil
}

// No handle has any state bits set
func hGetState(s *Session, args ArgReader) (Result, error) {
	return Return(0), nil
}

func newHandle(clear bool) Handler {
	return func(s *Session, args ArgReader) (Result, error) {
		size, err := args.Read1()
		if err != nil {
			return Void(), err
		}

		handle, err := s.Heap.NewHandle(size, clear)
		if err != nil {
			return Void(), err
		}
		return Return(handle), nil
	}
}

func newPtr(clear bool) Handler {
	return func(s *Session, args ArgReader) (Result, error) {
		size, err := args.Read1()
		if err != nil {
			return Void(), err
		}

		ptr, err := s.Heap.NewPtr(size, clear)
		if err != nil {
			return Void(), err
		}
		return Return(ptr), nil
	}
}

func disposeHandle(s *Session, args ArgReader) (Result, error) {
	handle, err := args.Read1()
	if err != nil {
		return Void(), err
	}
	return Void(), s.Heap.DisposeHandle(handle)
}

func disposePtr(s *Session, args ArgReader) (Result, error) {
	ptr, err := args.Read1()
	if err != nil {
		return Void(), err
	}
	return Void(), s.Heap.DisposePtr(ptr)
}

func getHandleSize(s *Session, args ArgReader) (Result, error) {
	handle, err := args.Read1()
	if err != nil {
		return Void(), err
	}

	size, err := s.Heap.GetHandleSize(handle)
	if err != nil {
		return Void(), err
	}
	return Return(size), nil
}

func getPtrSize(s *Session, args ArgReader) (Result, error) {
	ptr, err := args.Read1()
	if err != nil {
		return Void(), err
	}

	size, err := s.Heap.GetPtrSize(ptr)
	if err != nil {
		return Void(), err
	}
	return Return(size), nil
}

// The size setters are procedures; the guest checks MemError for the outcome
func setHandleSize(s *Session, args ArgReader) (Result, error) {
	handle, newSize, err := args.Read2()
	if err != nil {
		return Void(), err
	}

	_, err = s.Heap.SetHandleSize(handle, newSize)
	return Void(), err
}

func setPtrSize(s *Session, args ArgReader) (Result, error) {
	ptr, newSize, err := args.Read2()
	if err != nil {
		return Void(), err
	}

	_, err = s.Heap.SetPtrSize(ptr, newSize)
	return Void(), err
}

func blockMoveData(s *Session, args ArgReader) (Result, error) {
	src, dest, length, err := args.Read3()
	if err != nil {
		return Void(), err
	}
	return Void(), guest.BlockCopy(s.Memory, src, dest, length)
}

// appendToHandle grows handle by length bytes and copies length bytes from the address source
// returns into the new tail. source is resolved after the resize since it may live in a block
// the resize moved. On failure the handle is untouched and the failing status is returned.
func (s *Session) appendToHandle(handle guest.Address, length uint32, source func() (guest.Address, error)) (heap.StatusCode, error) {
	current, err := s.Heap.GetHandleSize(handle)
	if err != nil {
		return NoStatus, err
	}
	if handle == guest.Nil {
		return heap.NilHandleErr, nil
	}
	if uint64(current)+uint64(length) > math.MaxUint32 {
		return heap.MemFullErr, nil
	}

	ok, err := s.Heap.SetHandleSize(handle, current+length)
	if err != nil {
		return NoStatus, err
	}
	if !ok {
		return s.Heap.MemError(), nil
	}

	src, err := source()
	if err != nil {
		return NoStatus, err
	}
	base, err := s.Memory.ReadU32(handle)
	if err != nil {
		return NoStatus, err
	}

	err = guest.BlockCopy(s.Memory, src, base+current, length)
	if err != nil {
		return NoStatus, err
	}
	return heap.NoErr, nil
}

// NoStatus accompanies a fatal error; the guest never sees it
const NoStatus = heap.NoErr

func ptrAndHand(s *Session, args ArgReader) (Result, error) {
	ptr, handle, size, err := args.Read3()
	if err != nil {
		return Void(), err
	}

	status, err := s.appendToHandle(handle, size, func() (guest.Address, error) {
		return ptr, nil
	})
	if err != nil {
		return Void(), err
	}
	return Return(status.U32()), nil
}

func handAndHand(s *Session, args ArgReader) (Result, error) {
	src, dest, err := args.Read2()
	if err != nil {
		return Void(), err
	}

	size, err := s.Heap.GetHandleSize(src)
	if err != nil {
		return Void(), err
	}
	if src == guest.Nil {
		return Return(heap.NilHandleErr.U32()), nil
	}

	status, err := s.appendToHandle(dest, size, func() (guest.Address, error) {
		return s.Memory.ReadU32(src)
	})
	if err != nil {
		return Void(), err
	}
	return Return(status.U32()), nil
}

// duplicate copies size bytes at src into a new handle
func (s *Session) duplicate(src guest.Address, size uint32) (guest.Address, error) {
	handle, err := s.Heap.NewHandle(size, false)
	if err != nil || handle == guest.Nil {
		return guest.Nil, err
	}

	base, err := s.Memory.ReadU32(handle)
	if err != nil {
		return guest.Nil, err
	}

	err = guest.BlockCopy(s.Memory, src, base, size)
	if err != nil {
		return guest.Nil, err
	}
	return handle, nil
}

func ptrToHand(s *Session, args ArgReader) (Result, error) {
	src, out, size, err := args.Read3()
	if err != nil {
		return Void(), err
	}

	handle, err := s.duplicate(src, size)
	if err != nil {
		return Void(), err
	}
	if handle == guest.Nil {
		return Return(s.Heap.MemError().U32()), nil
	}

	err = s.Memory.WriteU32(out, handle)
	if err != nil {
		return Void(), err
	}
	return Return(heap.NoErr.U32()), nil
}

func ptrToXHand(s *Session, args ArgReader) (Result, error) {
	src, handle, size, err := args.Read3()
	if err != nil {
		return Void(), err
	}

	ok, err := s.Heap.SetHandleSize(handle, size)
	if err != nil {
		return Void(), err
	}
	if !ok {
		return Return(s.Heap.MemError().U32()), nil
	}

	base, err := s.Memory.ReadU32(handle)
	if err != nil {
		return Void(), err
	}

	err = guest.BlockCopy(s.Memory, src, base, size)
	if err != nil {
		return Void(), err
	}
	return Return(heap.NoErr.U32()), nil
}

func handToHand(s *Session, args ArgReader) (Result, error) {
	inOut, err := args.Read1()
	if err != nil {
		return Void(), err
	}

	src, err := s.Memory.ReadU32(inOut)
	if err != nil {
		return Void(), err
	}

	size, err := s.Heap.GetHandleSize(src)
	if err != nil {
		return Void(), err
	}
	if src == guest.Nil {
		return Return(heap.NilHandleErr.U32()), nil
	}

	srcBase, err := s.Memory.ReadU32(src)
	if err != nil {
		return Void(), err
	}

	handle, err := s.duplicate(srcBase, size)
	if err != nil {
		return Void(), err
	}
	if handle == guest.Nil {
		return Return(s.Heap.MemError().U32()), nil
	}

	err = s.Memory.WriteU32(inOut, handle)
	if err != nil {
		return Void(), err
	}
	return Return(heap.NoErr.U32()), nil
}

func recoverHandle(s *Session, args ArgReader) (Result, error) {
	ptr, err := args.Read1()
	if err != nil {
		return Void(), err
	}
	return Return(s.Heap.RecoverHandle(ptr)), nil
}

func memError(s *Session, args ArgReader) (Result, error) {
	return Return(s.Heap.MemError().U32()), nil
}

func freeMem(s *Session, args ArgReader) (Result, error) {
	return Return(s.Heap.FreeMem()), nil
}

func maxBlock(s *Session, args ArgReader) (Result, error) {
	return Return(s.Heap.MaxBlock()), nil
}

// Nothing is purgeable, so the zone can never grow by purging
func maxMem(s *Session, args ArgReader) (Result, error) {
	grow, err := args.Read1()
	if err != nil {
		return Void(), err
	}

	if grow != guest.Nil {
		err = s.Memory.WriteU32(grow, 0)
		if err != nil {
			return Void(), err
		}
	}
	return Return(s.Heap.MaxBlock()), nil
}

func compactMem(s *Session, args ArgReader) (Result, error) {
	_, err := args.Read1()
	if err != nil {
		return Void(), err
	}
	return Return(s.Heap.MaxBlock()), nil
}

func moreMasters(s *Session, args ArgReader) (Result, error) {
	_, err := s.Heap.MoreMasters()
	return Void(), err
}
