package metadata

// AllocationStrategy exposes several options for choosing the location of a new allocation. If
// none is chosen, a balanced strategy will be used.
type AllocationStrategy uint32

const (
	// AllocationStrategyMinMemory selects the allocation strategy that chooses the smallest-possible
	// free range for the allocation to minimize memory usage and fragmentation, possibly at the expense of
	// allocation time
	AllocationStrategyMinMemory AllocationStrategy = 1 << iota
	// AllocationStrategyMinTime selects the allocation strategy that chooses the first suitable free
	// range for the allocation- not necessarily in terms of the smallest offset, but the one that is easiest
	// and fastest to find to minimize allocation time, possibly at the expense of allocation quality.
	AllocationStrategyMinTime
	// AllocationStrategyMinOffset selects the allocation strategy that chooses the lowest offset in
	// available space. Classic zones fill from the bottom up, so this gives the most faithful layout.
	AllocationStrategyMinOffset
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	0:                           "Balanced",
	AllocationStrategyMinMemory: "MinMemory",
	AllocationStrategyMinTime:   "MinTime",
	AllocationStrategyMinOffset: "MinOffset",
}

func (s AllocationStrategy) String() string {
	return allocationStrategyMapping[s]
}

// ParseAllocationStrategy maps a strategy name, as produced by String, back to its value
func ParseAllocationStrategy(name string) (AllocationStrategy, bool) {
	for strategy, strategyName := range allocationStrategyMapping {
		if strategyName == name {
			return strategy, true
		}
	}
	return 0, false
}
