package shim

import (
	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/heap"
	"golang.org/x/exp/slog"
)

// Session is the state of one emulated guest: its address space and the heap that lives in it.
// Sessions share nothing, so independent guests each get their own.
type Session struct {
	Memory guest.Memory
	Heap   *heap.Heap

	logger *slog.Logger
}

// NewSession creates the heap described by options inside mem and returns a session over both
func NewSession(logger *slog.Logger, mem guest.Memory, options heap.CreateOptions) (*Session, error) {
	h, err := heap.New(logger, mem, options)
	if err != nil {
		return nil, err
	}

	return &Session{
		Memory: mem,
		Heap:   h,
		logger: logger,
	}, nil
}

// Close destroys the session's heap. It reports an error if the guest left blocks undisposed.
func (s *Session) Close() error {
	return s.Heap.Destroy()
}
