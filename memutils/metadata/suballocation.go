package metadata

import "math"

// BlockAllocationHandle identifies a region inside a BlockMetadata. Handles of freed allocations
// may be reused by later allocations.
type BlockAllocationHandle uint64

const (
	NoAllocation BlockAllocationHandle = math.MaxUint64
)
