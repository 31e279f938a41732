package heap

import (
	"strings"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/internal/utils"
	"github.com/classicmac/memshim/memutils"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateExternallySynchronized ensures that the heap will not be synchronized internally. The
	// consumer must guarantee it is used from only one thread at a time, which is always true for a
	// heap that belongs to a single emulated guest.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateExternallySynchronized: "CreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	var names []string
	for flag, name := range createFlagsMapping {
		if f&flag != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

const (
	// DefaultAlignment is the block alignment used when none is provided via CreateOptions. Block
	// bases and reservations are always multiples of it.
	DefaultAlignment uint32 = 4
	// DefaultMasterPointers is the number of master pointer cells in each master block when none
	// is provided via CreateOptions.
	DefaultMasterPointers int = 64

	cellSize = 4
)

// CreateOptions contains the settings used to create a Heap. Base and Size are required; the
// other fields may be left blank.
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
	// Base is the guest address of the first byte of the zone. It must be nonzero and a multiple
	// of Alignment.
	Base guest.Address
	// Size is the number of bytes in the zone. It is rounded down to a multiple of Alignment.
	Size uint32
	// Alignment is the alignment of every block. It must be a power of two.
	Alignment uint32
	// MasterPointers is the number of master pointer cells reserved together whenever the heap
	// runs out of cells
	MasterPointers int
	// Strategy is the placement strategy passed to free tracking. The zero value is the balanced
	// strategy.
	Strategy metadata.AllocationStrategy
}

// New creates a Heap over the zone [options.Base, options.Base+options.Size) of mem and reserves
// its first master block. mem is only touched through the guest.Memory interface.
func New(logger *slog.Logger, mem guest.Memory, options CreateOptions) (*Heap, error) {
	if mem == nil {
		return nil, errors.New("heap.New requires a guest memory")
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if err := memutils.CheckPow2(alignment, "heap.CreateOptions.Alignment"); err != nil {
		return nil, err
	}

	if options.Base == guest.Nil {
		return nil, errors.New("heap.CreateOptions.Base must not be the nil address")
	}
	if options.Base%alignment != 0 {
		return nil, errors.Newf("heap.CreateOptions.Base %08X is not aligned to %d", options.Base, alignment)
	}
	if uint64(options.Base)+uint64(options.Size) > 1<<32 {
		return nil, errors.Newf("heap zone at %08X with size %d does not fit the guest address space", options.Base, options.Size)
	}

	masterPointers := options.MasterPointers
	if masterPointers == 0 {
		masterPointers = DefaultMasterPointers
	}
	if masterPointers < 0 {
		return nil, errors.Newf("heap.CreateOptions.MasterPointers is %d", masterPointers)
	}

	size := memutils.AlignDown(options.Size, alignment)
	if uint64(size) < memutils.AlignUp(uint64(masterPointers*cellSize), uint64(alignment)) {
		return nil, errors.Wrapf(memutils.ErrZoneTooSmall, "a zone of %d bytes cannot hold %d master pointers", size, masterPointers)
	}

	md := metadata.NewTLSFBlockMetadata()
	md.Init(int(size))

	h := &Heap{
		logger:         logger,
		mem:            mem,
		mutex:          utils.OptionalMutex{UseMutex: options.Flags&CreateExternallySynchronized == 0},
		base:           options.Base,
		alignment:      alignment,
		cellsPerMaster: masterPointers,
		strategy:       options.Strategy,
		metadata:       md,
		pointers:       swiss.NewMap[guest.Address, *block](64),
		handles:        swiss.NewMap[guest.Address, *block](64),
	}

	ok, err := h.addMasterBlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(memutils.ErrZoneTooSmall, "could not reserve the first master block")
	}

	logger.Debug("Heap::New",
		slog.String("base", formatAddress(h.base)),
		slog.Uint64("size", uint64(size)),
		slog.Uint64("alignment", uint64(alignment)),
		slog.String("strategy", h.strategy.String()),
		slog.String("flags", options.Flags.String()),
	)

	return h, nil
}
