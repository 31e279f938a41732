package metadata_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/classicmac/memshim/memutils"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

type region struct {
	Offset int
	Size   int
	Free   bool
}

func allocate(t *testing.T, tlsf *metadata.TLSFBlockMetadata, size int, alignment uint, strategy metadata.AllocationStrategy) metadata.BlockAllocationHandle {
	t.Helper()

	success, req, err := tlsf.CreateAllocationRequest(size, alignment, strategy)
	require.NoError(t, err)
	require.True(t, success)

	err = tlsf.Alloc(req, nil)
	require.NoError(t, err)

	return req.BlockAllocationHandle
}

func offsetOf(t *testing.T, tlsf *metadata.TLSFBlockMetadata, handle metadata.BlockAllocationHandle) int {
	t.Helper()

	offset, err := tlsf.AllocationOffset(handle)
	require.NoError(t, err)
	return offset
}

func regions(t *testing.T, tlsf *metadata.TLSFBlockMetadata) []region {
	t.Helper()

	var out []region
	err := tlsf.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		out = append(out, region{Offset: offset, Size: size, Free: free})
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestTLSFBasicAlloc(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	var stats memutils.DetailedStatistics
	stats.Clear()
	tlsf.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ZoneCount:       1,
			ZoneBytes:       1000,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 1000,
		UnusedRangeSizeMax: 1000,
	}, stats)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	require.Equal(t, 0, offsetOf(t, tlsf, alloc1))

	stats.Clear()
	tlsf.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ZoneCount:       1,
			ZoneBytes:       1000,
			AllocationCount: 1,
			AllocationBytes: 100,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  100,
		AllocationSizeMax:  100,
		UnusedRangeSizeMin: 900,
		UnusedRangeSizeMax: 900,
	}, stats)

	err := tlsf.Free(alloc1)
	require.NoError(t, err)
	require.True(t, tlsf.IsEmpty())

	stats.Clear()
	tlsf.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ZoneCount:       1,
			ZoneBytes:       1000,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 1000,
		UnusedRangeSizeMax: 1000,
	}, stats)
}

func TestTLSFSameSize(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(10000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	alloc2 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	alloc3 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	alloc4 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)

	var stats memutils.DetailedStatistics
	stats.Clear()
	tlsf.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ZoneCount:       1,
			ZoneBytes:       10000,
			AllocationCount: 4,
			AllocationBytes: 400,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  100,
		AllocationSizeMax:  100,
		UnusedRangeSizeMin: 9600,
		UnusedRangeSizeMax: 9600,
	}, stats)

	require.NoError(t, tlsf.Free(alloc1))
	require.NoError(t, tlsf.Free(alloc3))
	require.NoError(t, tlsf.Validate())
	require.Equal(t, 3, tlsf.FreeRegionsCount())

	require.NoError(t, tlsf.Free(alloc2))
	require.NoError(t, tlsf.Free(alloc4))
	require.NoError(t, tlsf.Validate())

	require.Equal(t, 1, tlsf.FreeRegionsCount())
	require.Equal(t, 10000, tlsf.SumFreeSize())
	require.Equal(t, 10000, tlsf.LargestFreeRegion())
	require.Equal(t, []region{{Offset: 0, Size: 10000, Free: true}}, regions(t, tlsf))
}

func TestTLSFFreeSpaceHuntDiffTiers(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(10000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinMemory)
	alloc3 := allocate(t, tlsf, 1000, 1, metadata.AllocationStrategyMinMemory)
	allocate(t, tlsf, 8800, 1, metadata.AllocationStrategyMinMemory)

	require.Equal(t, 0, tlsf.SumFreeSize())
	require.Equal(t, 0, tlsf.FreeRegionsCount())

	require.NoError(t, tlsf.Free(alloc1))
	require.NoError(t, tlsf.Free(alloc3))

	alloc5 := allocate(t, tlsf, 110, 1, metadata.AllocationStrategyMinMemory)
	require.Equal(t, 200, offsetOf(t, tlsf, alloc5))

	var stats memutils.DetailedStatistics
	stats.Clear()
	tlsf.AddDetailedStatistics(&stats)
	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ZoneCount:       1,
			ZoneBytes:       10000,
			AllocationCount: 3,
			AllocationBytes: 9010,
		},
		UnusedRangeCount:   2,
		AllocationSizeMin:  100,
		AllocationSizeMax:  8800,
		UnusedRangeSizeMin: 100,
		UnusedRangeSizeMax: 890,
	}, stats)
	require.NoError(t, tlsf.Validate())
}

func TestTLSFMinOffsetPrefersLowestGap(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	alloc3 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	require.NoError(t, tlsf.Free(alloc3))
	require.NoError(t, tlsf.Free(alloc1))

	small := allocate(t, tlsf, 50, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 0, offsetOf(t, tlsf, small))

	fits := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 200, offsetOf(t, tlsf, fits))

	tail := allocate(t, tlsf, 60, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 400, offsetOf(t, tlsf, tail))

	require.NoError(t, tlsf.Validate())
}

func TestTLSFAlignment(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc1 := allocate(t, tlsf, 3, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 0, offsetOf(t, tlsf, alloc1))

	alloc2 := allocate(t, tlsf, 8, 16, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 16, offsetOf(t, tlsf, alloc2))

	require.Equal(t, []region{
		{Offset: 0, Size: 3},
		{Offset: 3, Size: 13, Free: true},
		{Offset: 16, Size: 8},
		{Offset: 24, Size: 976, Free: true},
	}, regions(t, tlsf))
	require.NoError(t, tlsf.Validate())

	_, _, err := tlsf.CreateAllocationRequest(8, 3, metadata.AllocationStrategyMinOffset)
	require.True(t, errors.Is(err, memutils.ErrPowerOfTwo))
}

func TestTLSFRequestTooLarge(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	success, _, err := tlsf.CreateAllocationRequest(1001, 1, metadata.AllocationStrategyMinOffset)
	require.NoError(t, err)
	require.False(t, success)

	_, _, err = tlsf.CreateAllocationRequest(0, 1, metadata.AllocationStrategyMinOffset)
	require.Error(t, err)

	allocate(t, tlsf, 1000, 1, metadata.AllocationStrategyMinOffset)
	success, _, err = tlsf.CreateAllocationRequest(1, 1, metadata.AllocationStrategyMinOffset)
	require.NoError(t, err)
	require.False(t, success)
}

func TestTLSFResizeShrinkIntoNullBlock(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	ok, err := tlsf.Resize(alloc, 40)
	require.NoError(t, err)
	require.True(t, ok)

	size, err := tlsf.AllocationSize(alloc)
	require.NoError(t, err)
	require.Equal(t, 40, size)
	require.Equal(t, 960, tlsf.SumFreeSize())
	require.Equal(t, 1, tlsf.FreeRegionsCount())

	next := allocate(t, tlsf, 10, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 40, offsetOf(t, tlsf, next))
	require.NoError(t, tlsf.Validate())
}

func TestTLSFResizeShrinkCreatesFreeRegion(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	ok, err := tlsf.Resize(alloc1, 60)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tlsf.Validate())

	require.Equal(t, []region{
		{Offset: 0, Size: 60},
		{Offset: 60, Size: 40, Free: true},
		{Offset: 100, Size: 100},
		{Offset: 200, Size: 800, Free: true},
	}, regions(t, tlsf))
	require.Equal(t, 2, tlsf.FreeRegionsCount())
	require.Equal(t, 800, tlsf.LargestFreeRegion())

	filler := allocate(t, tlsf, 40, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 60, offsetOf(t, tlsf, filler))
	require.NoError(t, tlsf.Validate())
}

func TestTLSFResizeShrinkMergesWithFreeNeighbor(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	alloc2 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	require.NoError(t, tlsf.Free(alloc2))

	ok, err := tlsf.Resize(alloc1, 50)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tlsf.Validate())

	require.Equal(t, []region{
		{Offset: 0, Size: 50},
		{Offset: 50, Size: 150, Free: true},
		{Offset: 200, Size: 100},
		{Offset: 300, Size: 700, Free: true},
	}, regions(t, tlsf))
	require.Equal(t, 2, tlsf.FreeRegionsCount())
}

func TestTLSFResizeGrow(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc1 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	alloc2 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	alloc3 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	require.NoError(t, tlsf.Free(alloc2))

	ok, err := tlsf.Resize(alloc1, 150)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tlsf.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 150},
		{Offset: 150, Size: 50, Free: true},
		{Offset: 200, Size: 100},
		{Offset: 300, Size: 700, Free: true},
	}, regions(t, tlsf))

	ok, err = tlsf.Resize(alloc1, 200)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tlsf.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 200},
		{Offset: 200, Size: 100},
		{Offset: 300, Size: 700, Free: true},
	}, regions(t, tlsf))

	ok, err = tlsf.Resize(alloc1, 201)
	require.NoError(t, err)
	require.False(t, ok)

	size, err := tlsf.AllocationSize(alloc1)
	require.NoError(t, err)
	require.Equal(t, 200, size)

	ok, err = tlsf.Resize(alloc3, 700)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, tlsf.SumFreeSize())

	ok, err = tlsf.Resize(alloc3, 800)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tlsf.Validate())

	require.Equal(t, 0, tlsf.SumFreeSize())
	require.Equal(t, 0, tlsf.FreeRegionsCount())
	require.Equal(t, []region{
		{Offset: 0, Size: 200},
		{Offset: 200, Size: 800},
	}, regions(t, tlsf))

	ok, err = tlsf.Resize(alloc3, 801)
	require.NoError(t, err)
	require.False(t, ok)

	// Same size is trivially in place
	ok, err = tlsf.Resize(alloc3, 800)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTLSFResizeInvalid(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	alloc := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	_, err := tlsf.Resize(alloc, 0)
	require.Error(t, err)

	require.NoError(t, tlsf.Free(alloc))

	_, err = tlsf.Resize(alloc, 10)
	require.Error(t, err)

	_, err = tlsf.AllocationOffset(alloc)
	require.Error(t, err)

	err = tlsf.Free(alloc)
	require.Error(t, err)

	_, err = tlsf.Resize(metadata.NoAllocation, 10)
	require.Error(t, err)
}

func TestTLSFUserData(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	success, req, err := tlsf.CreateAllocationRequest(100, 4, metadata.AllocationStrategyMinOffset)
	require.NoError(t, err)
	require.True(t, success)
	require.NoError(t, tlsf.Alloc(req, "first"))

	userData, err := tlsf.AllocationUserData(req.BlockAllocationHandle)
	require.NoError(t, err)
	require.Equal(t, "first", userData)

	require.NoError(t, tlsf.SetAllocationUserData(req.BlockAllocationHandle, 7))
	userData, err = tlsf.AllocationUserData(req.BlockAllocationHandle)
	require.NoError(t, err)
	require.Equal(t, 7, userData)

	var seen []any
	err = tlsf.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		if !free {
			require.Equal(t, req.BlockAllocationHandle, handle)
			seen = append(seen, userData)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []any{7}, seen)
}

func TestTLSFVisitStopsAtError(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	stop := errors.New("stop")
	visited := 0
	err := tlsf.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		visited++
		return stop
	})
	require.True(t, errors.Is(err, stop))
	require.Equal(t, 1, visited)
}

func TestTLSFClear(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	alloc2 := allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	require.NoError(t, tlsf.Free(alloc2))

	tlsf.Clear()
	require.NoError(t, tlsf.Validate())
	require.True(t, tlsf.IsEmpty())
	require.Equal(t, 1000, tlsf.SumFreeSize())
	require.Equal(t, []region{{Offset: 0, Size: 1000, Free: true}}, regions(t, tlsf))

	alloc := allocate(t, tlsf, 1000, 1, metadata.AllocationStrategyMinOffset)
	require.Equal(t, 0, offsetOf(t, tlsf, alloc))
}

func TestTLSFBlockJsonData(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	tlsf.BlockJsonData(obj)
	obj.End()

	require.Equal(t, `{"TotalBytes":1000,"UnusedBytes":900,"Allocations":1,"UnusedRanges":1}`, string(writer.Bytes()))
}

func TestTLSFStatistics(t *testing.T) {
	tlsf := metadata.NewTLSFBlockMetadata()
	tlsf.Init(1000)

	allocate(t, tlsf, 100, 1, metadata.AllocationStrategyMinOffset)
	allocate(t, tlsf, 250, 1, metadata.AllocationStrategyMinOffset)

	var stats memutils.Statistics
	stats.Clear()
	tlsf.AddStatistics(&stats)

	require.Equal(t, memutils.Statistics{
		ZoneCount:       1,
		AllocationCount: 2,
		ZoneBytes:       1000,
		AllocationBytes: 350,
	}, stats)
	require.Equal(t, 650, stats.FreeBytes())
}

func TestTLSFRandomizedOperations(t *testing.T) {
	for _, strategy := range []metadata.AllocationStrategy{
		0,
		metadata.AllocationStrategyMinMemory,
		metadata.AllocationStrategyMinTime,
		metadata.AllocationStrategyMinOffset,
	} {
		t.Run(strategy.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1984))

			tlsf := metadata.NewTLSFBlockMetadata()
			tlsf.Init(64 * 1024)

			live := map[metadata.BlockAllocationHandle]int{}
			var order []metadata.BlockAllocationHandle

			for i := 0; i < 2000; i++ {
				switch op := rng.Intn(3); {
				case op == 0 || len(order) == 0:
					size := 1 + rng.Intn(2048)
					success, req, err := tlsf.CreateAllocationRequest(size, 4, strategy)
					require.NoError(t, err)
					if !success {
						continue
					}
					require.Zero(t, req.Offset%4)
					require.NoError(t, tlsf.Alloc(req, nil))

					live[req.BlockAllocationHandle] = size
					order = append(order, req.BlockAllocationHandle)
				case op == 1:
					index := rng.Intn(len(order))
					handle := order[index]
					require.NoError(t, tlsf.Free(handle))

					delete(live, handle)
					order = append(order[:index], order[index+1:]...)
				default:
					handle := order[rng.Intn(len(order))]
					newSize := 1 + rng.Intn(4096)
					ok, err := tlsf.Resize(handle, newSize)
					require.NoError(t, err)
					if ok {
						live[handle] = newSize
					}
				}

				require.NoError(t, tlsf.Validate())
			}

			used := 0
			for handle, size := range live {
				actual, err := tlsf.AllocationSize(handle)
				require.NoError(t, err)
				require.Equal(t, size, actual)
				used += size
			}

			require.Equal(t, len(live), tlsf.AllocationCount())
			require.Equal(t, tlsf.Size()-used, tlsf.SumFreeSize())
		})
	}
}
