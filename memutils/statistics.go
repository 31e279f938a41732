package memutils

import (
	"math"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics summarizes the occupancy of one or more zones
type Statistics struct {
	ZoneCount       int
	AllocationCount int
	ZoneBytes       int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.ZoneCount = 0
	s.AllocationCount = 0
	s.ZoneBytes = 0
	s.AllocationBytes = 0
}

// FreeBytes is the number of zone bytes not covered by an allocation
func (s *Statistics) FreeBytes() int {
	return s.ZoneBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with the size distribution of allocations and of
// unused ranges. Call Clear before accumulating into it so the minimums start out at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

// PrintJson writes the statistics as members of json. Minimums that were never lowered from
// their cleared state are written as 0.
func (s *DetailedStatistics) PrintJson(json jwriter.ObjectState) {
	json.Name("Zones").Int(s.ZoneCount)
	json.Name("Bytes").Int(s.ZoneBytes)
	json.Name("Allocations").Int(s.AllocationCount)
	json.Name("AllocationBytes").Int(s.AllocationBytes)
	json.Name("UnusedRanges").Int(s.UnusedRangeCount)

	if s.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(s.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(s.AllocationSizeMax)
	}
	if s.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(s.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(s.UnusedRangeSizeMax)
	}
}
