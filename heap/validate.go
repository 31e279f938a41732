package heap

import (
	"context"
	"fmt"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/memutils"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Validate checks that free tracking is consistent, that every block record matches the region
// free tracking holds for it, that live blocks are pairwise disjoint and that every master pointer
// cell holds the base of its block. Validation reads the cells, so it can return an access fault.
func (h *Heap) Validate() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.validate()
}

func (h *Heap) liveBlocks() []*block {
	blocks := make([]*block, 0, h.pointers.Count()+h.handles.Count()+len(h.masters))
	blocks = append(blocks, h.masters...)
	h.pointers.Iter(func(_ guest.Address, b *block) bool {
		blocks = append(blocks, b)
		return false
	})
	h.handles.Iter(func(_ guest.Address, b *block) bool {
		blocks = append(blocks, b)
		return false
	})
	return blocks
}

func (h *Heap) validate() error {
	err := h.metadata.Validate()
	if err != nil {
		return corruptedError(err, "free tracking failed validation")
	}

	blocks := h.liveBlocks()
	if len(blocks) != h.metadata.AllocationCount() {
		return corruptedError(nil, "the heap records %d blocks but free tracking holds %d allocations", len(blocks), h.metadata.AllocationCount())
	}

	for _, b := range blocks {
		offset, err := h.metadata.AllocationOffset(b.alloc)
		if err != nil {
			return corruptedError(err, "the %s block at %08X has no allocation", b.kind, b.base)
		}
		reserved, err := h.metadata.AllocationSize(b.alloc)
		if err != nil {
			return corruptedError(err, "the %s block at %08X has no allocation", b.kind, b.base)
		}
		userData, err := h.metadata.AllocationUserData(b.alloc)
		if err != nil {
			return corruptedError(err, "the %s block at %08X has no allocation", b.kind, b.base)
		}

		if h.base+guest.Address(offset) != b.base {
			return corruptedError(nil, "the %s block at %08X is tracked at %08X", b.kind, b.base, h.base+guest.Address(offset))
		}
		if uint32(reserved) != b.reserved {
			return corruptedError(nil, "the %s block at %08X reserves %d bytes but free tracking holds %d", b.kind, b.base, b.reserved, reserved)
		}
		if b.size > b.reserved {
			return corruptedError(nil, "the %s block at %08X has size %d beyond its reservation of %d", b.kind, b.base, b.size, b.reserved)
		}
		if userData != b {
			return corruptedError(nil, "the %s block at %08X does not own its allocation", b.kind, b.base)
		}
		if b.base%h.alignment != 0 {
			return corruptedError(nil, "the %s block at %08X is not aligned to %d", b.kind, b.base, h.alignment)
		}
	}

	slices.SortFunc(blocks, func(a, b *block) bool {
		return a.base < b.base
	})
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].end() > uint64(blocks[i].base) {
			return corruptedError(nil, "the %s block at %08X overlaps the %s block at %08X",
				blocks[i-1].kind, blocks[i-1].base, blocks[i].kind, blocks[i].base)
		}
	}

	cellCount := len(h.masters) * h.cellsPerMaster
	if h.handles.Count()+len(h.freeCells) != cellCount {
		return corruptedError(nil, "%d handles and %d free cells do not add up to %d master pointers", h.handles.Count(), len(h.freeCells), cellCount)
	}

	var cellErr error
	h.handles.Iter(func(cell guest.Address, b *block) bool {
		if b.cell != cell {
			cellErr = corruptedError(nil, "the handle %08X refers to the block owned by %08X", cell, b.cell)
			return true
		}
		if !h.isCell(cell) {
			cellErr = corruptedError(nil, "the handle %08X is not a master pointer cell", cell)
			return true
		}

		value, err := h.mem.ReadU32(cell)
		if err != nil {
			cellErr = err
			return true
		}
		if value != b.base {
			cellErr = corruptedError(nil, "the master pointer %08X holds %08X but its block is at %08X", cell, value, b.base)
			return true
		}
		return false
	})

	return cellErr
}

func (h *Heap) isCell(addr guest.Address) bool {
	for _, master := range h.masters {
		if addr >= master.base && uint64(addr)+cellSize <= master.end() && (addr-master.base)%cellSize == 0 {
			return true
		}
	}
	return false
}

// Statistics sums the occupancy of the zone into stats. Master blocks count as allocations.
func (h *Heap) Statistics(stats *memutils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.metadata.AddDetailedStatistics(stats)
}

// PrintDetailedMap writes a JSON description of the zone and every region in it, in address order
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	objState := writer.Object()
	defer objState.End()

	objState.Name("Base").String(formatAddress(h.base))
	objState.Name("Alignment").Int(int(h.alignment))
	objState.Name("Strategy").String(h.strategy.String())

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.metadata.AddDetailedStatistics(&stats)

	totalObj := objState.Name("Total").Object()
	stats.PrintJson(totalObj)
	totalObj.End()

	zoneObj := objState.Name("Zone").Object()
	h.metadata.BlockJsonData(zoneObj)
	zoneObj.End()

	arrayState := objState.Name("Blocks").Array()
	defer arrayState.End()

	_ = h.metadata.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
			obj := arrayState.Object()
			defer obj.End()

			obj.Name("Address").String(formatAddress(h.base + guest.Address(offset)))
			if free {
				obj.Name("Type").String("Free")
				obj.Name("Size").Int(size)
				return nil
			}

			b, isBlock := userData.(*block)
			if !isBlock {
				obj.Name("CustomData").String(fmt.Sprintf("%+v", userData))
				return nil
			}

			b.printParameters(&obj)
			return nil
		})
}

func (b *block) printParameters(json *jwriter.ObjectState) {
	json.Name("Type").String(b.kind.String())
	json.Name("Size").Int(int(b.size))
	json.Name("Reserved").Int(int(b.reserved))
	if b.kind == blockKindMovable {
		json.Name("Handle").String(formatAddress(b.cell))
	}
}

// Destroy ends the heap's lifetime. Blocks the guest never disposed are logged and reported as an
// error; master blocks are not counted.
func (h *Heap) Destroy() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	leaked := h.pointers.Count() + h.handles.Count()
	if leaked > 0 {
		h.metadata.DebugLogAllAllocations(h.logger, func(log *slog.Logger, offset int, size int, userData any) {
			b, isBlock := userData.(*block)
			if !isBlock {
				log.LogAttrs(context.Background(),
					slog.LevelError,
					"[UNRELEASED MEMORY] allocation without a block record",
					slog.Int("offset", offset),
					slog.Int("size", size))
				return
			}
			if b.kind != blockKindMaster {
				logUnreleasedBlock(log, b)
			}
		})

		return errors.Newf("%d blocks were not disposed before the destruction of this heap", leaked)
	}

	h.metadata.Clear()
	h.masters = nil
	h.freeCells = nil
	return nil
}

func logUnreleasedBlock(log *slog.Logger, b *block) {
	attrs := []slog.Attr{
		slog.String("kind", b.kind.String()),
		slog.String("base", formatAddress(b.base)),
		slog.Uint64("size", uint64(b.size)),
	}
	if b.kind == blockKindMovable {
		attrs = append(attrs, slog.String("handle", formatAddress(b.cell)))
	}

	log.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] undisposed block", attrs...)
}
