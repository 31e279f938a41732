package metadata

import (
	"github.com/classicmac/memshim/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// BlockMetadata tracks the allocated and free regions of a single contiguous zone of bytes. It
// only does bookkeeping: it never touches the memory it describes. Offsets and sizes are in
// bytes relative to the start of the zone.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. size is the number of bytes in the
	// zone, all of which start out free.
	Init(size int)
	// Size retrieves the size in bytes that the zone was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive.
	// When the implementation is functioning correctly it should not be possible for this method
	// to return an error.
	Validate() error
	// AllocationCount returns the number of live allocations
	AllocationCount() int
	// FreeRegionsCount returns the number of distinct free regions. Adjacent free regions are
	// always merged, so this is also the number of gaps between allocations.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes in the zone
	SumFreeSize() int
	// LargestFreeRegion returns the size of the largest contiguous free region
	LargestFreeRegion() int
	// IsEmpty will return true if this zone has no live allocations
	IsEmpty() bool

	// VisitAllRegions calls handleBlock once for each allocated and free region in ascending
	// offset order. Iteration stops at the first error, which is returned.
	VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error
	// DebugLogAllAllocations calls logFunc once for each live allocation
	DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int, userData any))

	// AllocationOffset returns the offset of the live allocation identified by allocHandle
	AllocationOffset(allocHandle BlockAllocationHandle) (int, error)
	// AllocationSize returns the size in bytes of the live allocation identified by allocHandle
	AllocationSize(allocHandle BlockAllocationHandle) (int, error)
	// AllocationUserData returns the userData value provided for the live allocation
	AllocationUserData(allocHandle BlockAllocationHandle) (any, error)
	// SetAllocationUserData replaces the userData value of the live allocation
	SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error

	// AddDetailedStatistics sums this zone's statistics into stats
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this zone's statistics into stats
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// BlockJsonData populates a json object with information about this zone
	BlockJsonData(json jwriter.ObjectState)

	// CreateAllocationRequest finds a place for an allocation of allocSize bytes whose offset is a
	// multiple of allocAlignment. It returns false, without error, when no free region can hold
	// the allocation. Nothing is reserved until the request is passed to Alloc, and the request is
	// invalidated by any other mutation of the metadata.
	CreateAllocationRequest(allocSize int, allocAlignment uint, strategy AllocationStrategy) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest. The handle of the new allocation is the request's
	// BlockAllocationHandle.
	Alloc(request AllocationRequest, userData any) error
	// Free returns a live allocation to free tracking, merging it with neighboring free regions.
	Free(allocHandle BlockAllocationHandle) error
	// Resize changes the size of a live allocation without changing its offset. Shrinking always
	// succeeds. Growing succeeds only when the region directly after the allocation is free and
	// large enough; otherwise it returns false and changes nothing.
	Resize(allocHandle BlockAllocationHandle, newSize int) (bool, error)
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for BlockMetadata
// implementations in this package.
type BlockMetadataBase struct {
	size int
}

// Init prepares this structure for allocations and sizes the zone in bytes based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the zone in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

func (m *BlockMetadataBase) printJsonHeader(json jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
