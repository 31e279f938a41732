package guest

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrAccessFault marks every error produced by an access outside of the mapped guest space.
// Use errors.Is(err, ErrAccessFault) to recognize one after it has been wrapped by callers.
var ErrAccessFault = errors.New("guest memory access fault")

// AccessOp identifies the kind of access that faulted
type AccessOp int

const (
	AccessRead AccessOp = iota
	AccessWrite
)

var accessOpMapping = map[AccessOp]string{
	AccessRead:  "read",
	AccessWrite: "write",
}

func (o AccessOp) String() string {
	return accessOpMapping[o]
}

// AccessFault describes a single faulting access
type AccessFault struct {
	Op   AccessOp
	Addr Address
	Size int
}

func (f *AccessFault) Error() string {
	return fmt.Sprintf("[InvalidMemory] %s of %d byte(s) at %08X", f.Op, f.Size, f.Addr)
}

func newAccessFault(op AccessOp, addr Address, size int) error {
	return errors.Mark(&AccessFault{Op: op, Addr: addr, Size: size}, ErrAccessFault)
}
