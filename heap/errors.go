package heap

import (
	"github.com/classicmac/memshim/guest"
	"github.com/cockroachdb/errors"
)

// ErrUntrackedBlock marks faults raised when a handle or pointer that this heap does not track is
// disposed, queried or resized. This includes values that were already disposed.
var ErrUntrackedBlock = errors.New("block is not tracked by this heap")

// ErrCorrupted marks faults raised when the heap's free tracking disagrees with its block records
var ErrCorrupted = errors.New("heap bookkeeping is corrupted")

// IsFatal reports whether err must end the emulation session. Access faults and internal
// consistency faults are both fatal: neither is something the guest can observe and recover from.
func IsFatal(err error) bool {
	return err != nil && (errors.IsAssertionFailure(err) || errors.Is(err, guest.ErrAccessFault))
}

func untrackedError(kind string, addr guest.Address) error {
	return errors.WithAssertionFailure(
		errors.Mark(errors.Newf("%s %08X is not tracked by this heap", kind, addr), ErrUntrackedBlock),
	)
}

func corruptedError(err error, format string, args ...any) error {
	if err == nil {
		err = errors.Newf(format, args...)
	} else {
		err = errors.Wrapf(err, format, args...)
	}
	return errors.WithAssertionFailure(errors.Mark(err, ErrCorrupted))
}
