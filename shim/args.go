package shim

import (
	"github.com/classicmac/memshim/guest"
	"github.com/cockroachdb/errors"
)

// ErrMissingArgument is returned when a handler asks for more arguments than the frame holds
var ErrMissingArgument = errors.New("call frame is missing an argument")

// ArgReader extracts a handler's unsigned 32-bit arguments from the active call frame, in
// declared left-to-right order. A handler reads its arguments exactly once.
type ArgReader interface {
	Read1() (uint32, error)
	Read2() (uint32, uint32, error)
	Read3() (uint32, uint32, uint32, error)
}

// StackArgs reads arguments from a frame in guest memory. The first argument is the 32-bit word
// at Frame and each following argument is the next word up.
type StackArgs struct {
	Memory guest.Memory
	Frame  guest.Address
}

var _ ArgReader = StackArgs{}

func (a StackArgs) read(index uint32) (uint32, error) {
	return a.Memory.ReadU32(a.Frame + index*4)
}

func (a StackArgs) Read1() (uint32, error) {
	return a.read(0)
}

func (a StackArgs) Read2() (uint32, uint32, error) {
	first, err := a.read(0)
	if err != nil {
		return 0, 0, err
	}
	second, err := a.read(1)
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

func (a StackArgs) Read3() (uint32, uint32, uint32, error) {
	first, second, err := a.Read2()
	if err != nil {
		return 0, 0, 0, err
	}
	third, err := a.read(2)
	if err != nil {
		return 0, 0, 0, err
	}
	return first, second, third, nil
}

// Values is an ArgReader over arguments that were already decoded on the host
type Values []uint32

var _ ArgReader = Values{}

func (v Values) get(count int) ([]uint32, error) {
	if len(v) < count {
		return nil, errors.Wrapf(ErrMissingArgument, "wanted %d arguments but the frame holds %d", count, len(v))
	}
	return v[:count], nil
}

func (v Values) Read1() (uint32, error) {
	args, err := v.get(1)
	if err != nil {
		return 0, err
	}
	return args[0], nil
}

func (v Values) Read2() (uint32, uint32, error) {
	args, err := v.get(2)
	if err != nil {
		return 0, 0, err
	}
	return args[0], args[1], nil
}

func (v Values) Read3() (uint32, uint32, uint32, error) {
	args, err := v.get(3)
	if err != nil {
		return 0, 0, 0, err
	}
	return args[0], args[1], args[2], nil
}
