package heap

import (
	"github.com/classicmac/memshim/guest"
	"golang.org/x/exp/slog"
)

// addMasterBlock reserves a nonrelocatable block of zeroed master pointer cells and makes them
// available to takeCell, lowest address first. It returns false when the zone has no room.
func (h *Heap) addMasterBlock() (bool, error) {
	size := uint32(h.cellsPerMaster * cellSize)

	b, err := h.reserve(size, blockKindMaster)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}

	err = guest.Fill(h.mem, b.base, size, 0)
	if err != nil {
		return false, h.rollback(b, err)
	}

	h.masters = append(h.masters, b)
	for i := h.cellsPerMaster - 1; i >= 0; i-- {
		h.freeCells = append(h.freeCells, b.base+guest.Address(i*cellSize))
	}

	h.logger.Debug("    Heap::addMasterBlock",
		slog.String("base", formatAddress(b.base)),
		slog.Int("cells", h.cellsPerMaster),
	)

	return true, nil
}

// takeCell pops a free master pointer cell, reserving a new master block if none are left. It
// returns guest.Nil when the zone has no room for one.
func (h *Heap) takeCell() (guest.Address, error) {
	if len(h.freeCells) == 0 {
		ok, err := h.addMasterBlock()
		if err != nil || !ok {
			return guest.Nil, err
		}
	}

	last := len(h.freeCells) - 1
	cell := h.freeCells[last]
	h.freeCells = h.freeCells[:last]
	return cell, nil
}

func (h *Heap) returnCell(cell guest.Address) {
	h.freeCells = append(h.freeCells, cell)
}
