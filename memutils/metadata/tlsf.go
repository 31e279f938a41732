package metadata

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/classicmac/memshim/memutils"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

const (
	// Regions of up to smallRegionSize bytes share size class 0, which is split into four lists
	smallRegionSize = 256
	// Each size class above 0 is split into 1<<secondLevelBits lists
	secondLevelBits uint8 = 5
	sizeClassShift        = 7
	maxSizeClasses        = 65 - sizeClassShift
	smallLists            = 4
)

var regionPool = sync.Pool{
	New: func() any {
		return &region{}
	},
}

// region is one entry of the physical chain: either a live allocation or a run of free bytes.
// A taken region points prevFree at itself.
type region struct {
	offset       int
	size         int
	prevPhysical *region
	nextPhysical *region

	prevFree *region
	nextFree *region

	userData any
	handle   BlockAllocationHandle
}

func (r *region) markFree()    { r.prevFree = nil }
func (r *region) markTaken()   { r.prevFree = r }
func (r *region) isFree() bool { return r.prevFree != r }
func (r *region) end() int     { return r.offset + r.size }

func sizeClass(size int) uint8 {
	if size <= smallRegionSize {
		return 0
	}
	return uint8(63-bits.LeadingZeros64(uint64(size))) - sizeClassShift
}

func secondIndex(size int, class uint8) uint16 {
	if class == 0 {
		return uint16((size - 1) / (smallRegionSize / smallLists))
	}
	topBit := uint(1) << secondLevelBits
	return uint16((uint(size) >> (class + sizeClassShift - secondLevelBits)) ^ topBit)
}

func listIndex(class uint8, second uint16) int {
	if class == 0 {
		return int(second)
	}
	return int(class-1)<<secondLevelBits + int(second) + smallLists
}

func listIndexForSize(size int) int {
	class := sizeClass(size)
	return listIndex(class, secondIndex(size, class))
}

// nextListSize rounds size up so that every region in the list it lands in is at least size bytes
func nextListSize(size int) int {
	smallStep := smallRegionSize / smallLists
	switch {
	case size > smallRegionSize:
		return size + 1<<(63-bits.LeadingZeros64(uint64(size))-int(secondLevelBits))
	case size > smallRegionSize-smallStep:
		return smallRegionSize + 1
	default:
		return size + smallStep
	}
}

// TLSFBlockMetadata is a two-level segregated fit implementation of BlockMetadata. Free regions
// are bucketed by size class so that a fitting region is found in constant time, and regions
// are kept in a physical chain so that neighbors can be merged on free and consumed on resize.
//
// The last region of the physical chain is always the null region: the never-allocated tail of
// the zone. It is free but never appears in a free list, and it may have size 0.
type TLSFBlockMetadata struct {
	BlockMetadataBase

	allocCount  int
	freeCount   int
	freeBytes   int
	classBitmap uint32
	listBitmaps [maxSizeClasses]uint32

	lastHandle  BlockAllocationHandle
	regions     *swiss.Map[BlockAllocationHandle, *region]
	freeLists   []*region
	nullRegion  *region
	firstRegion *region
}

var _ BlockMetadata = &TLSFBlockMetadata{}

func NewTLSFBlockMetadata() *TLSFBlockMetadata {
	return &TLSFBlockMetadata{}
}

func (m *TLSFBlockMetadata) newRegion() *region {
	r := regionPool.Get().(*region)
	*r = region{}
	m.lastHandle++
	r.handle = m.lastHandle
	m.regions.Put(r.handle, r)
	return r
}

func (m *TLSFBlockMetadata) releaseRegion(r *region) {
	m.regions.Delete(r.handle)
	*r = region{}
	regionPool.Put(r)
}

func (m *TLSFBlockMetadata) getRegion(handle BlockAllocationHandle) (*region, error) {
	r, ok := m.regions.Get(handle)
	if !ok {
		return nil, errors.Newf("handle %d does not belong to this metadata", handle)
	}
	return r, nil
}

func (m *TLSFBlockMetadata) getLiveRegion(handle BlockAllocationHandle) (*region, error) {
	r, err := m.getRegion(handle)
	if err != nil {
		return nil, err
	}
	if r.isFree() {
		return nil, errors.Newf("handle %d refers to a free region at offset %d", handle, r.offset)
	}
	return r, nil
}

func (m *TLSFBlockMetadata) Init(size int) {
	m.BlockMetadataBase.Init(size)
	m.regions = swiss.NewMap[BlockAllocationHandle, *region](42)

	m.nullRegion = m.newRegion()
	m.nullRegion.size = size
	m.nullRegion.markFree()
	m.firstRegion = m.nullRegion

	// No free region can be larger than the zone
	m.freeLists = make([]*region, listIndexForSize(size)+1)
}

func (m *TLSFBlockMetadata) Validate() error {
	if m.SumFreeSize() > m.Size() {
		return errors.Errorf("%d bytes are free in a zone of %d bytes", m.SumFreeSize(), m.Size())
	}

	listed := 0
	for index, head := range m.freeLists {
		if head != nil && head.prevFree != nil {
			return errors.Errorf("the region at offset %d heads free list %d but has a predecessor", head.offset, index)
		}

		for r := head; r != nil; r = r.nextFree {
			if !r.isFree() {
				return errors.Errorf("the region at offset %d is in free list %d but is taken", r.offset, index)
			}
			if listIndexForSize(r.size) != index {
				return errors.Errorf("the region at offset %d with %d bytes is in the wrong free list", r.offset, r.size)
			}
			if r.nextFree != nil && r.nextFree.prevFree != r {
				return errors.Errorf("the free list link after the region at offset %d is broken", r.offset)
			}
			listed++
		}
	}

	if m.nullRegion.nextPhysical != nil {
		return errors.New("the null region is not the last region of the chain")
	}

	var expectedOffset, taken, free, freeBytes int
	var prev *region
	for r := m.firstRegion; r != nil; r = r.nextPhysical {
		if r.prevPhysical != prev {
			return errors.Errorf("the region at offset %d does not link back to its predecessor", r.offset)
		}
		if r.offset != expectedOffset {
			return errors.Errorf("the region at offset %d should start at offset %d", r.offset, expectedOffset)
		}
		expectedOffset = r.end()
		prev = r

		if r == m.nullRegion {
			if r.nextPhysical != nil || !r.isFree() {
				return errors.New("the null region must be the free tail of the chain")
			}
			freeBytes += r.size
			continue
		}

		if !r.isFree() {
			taken++
			continue
		}

		free++
		freeBytes += r.size
		if r.size == 0 {
			return errors.Errorf("the free region at offset %d is empty", r.offset)
		}
		if r.nextPhysical.isFree() {
			return errors.Errorf("the free region at offset %d was not merged with the free region after it", r.offset)
		}
	}

	if prev != m.nullRegion {
		return errors.New("the chain does not end at the null region")
	}
	if expectedOffset != m.size {
		return errors.Errorf("the zone holds %d bytes but its regions add up to %d", m.size, expectedOffset)
	}
	if listed != free || free != m.freeCount {
		return errors.Errorf("%d regions are free, %d are in free lists and %d are counted", free, listed, m.freeCount)
	}
	if freeBytes != m.SumFreeSize() {
		return errors.Errorf("free regions add up to %d bytes but %d are counted", freeBytes, m.SumFreeSize())
	}
	if taken != m.allocCount {
		return errors.Errorf("%d regions are taken but %d allocations are counted", taken, m.allocCount)
	}

	return nil
}

func (m *TLSFBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ZoneCount++
	stats.ZoneBytes += m.size

	for r := m.firstRegion; r != nil; r = r.nextPhysical {
		switch {
		case !r.isFree():
			stats.AddAllocation(r.size)
		case r.size > 0:
			stats.AddUnusedRange(r.size)
		}
	}
}

func (m *TLSFBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.ZoneCount++
	stats.AllocationCount += m.allocCount
	stats.ZoneBytes += m.size
	stats.AllocationBytes += m.size - m.SumFreeSize()
}

func (m *TLSFBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *TLSFBlockMetadata) FreeRegionsCount() int {
	if m.nullRegion.size > 0 {
		return m.freeCount + 1
	}
	return m.freeCount
}

func (m *TLSFBlockMetadata) SumFreeSize() int {
	return m.freeBytes + m.nullRegion.size
}

func (m *TLSFBlockMetadata) LargestFreeRegion() int {
	largest := m.nullRegion.size
	for r := m.firstRegion; r != m.nullRegion; r = r.nextPhysical {
		if r.isFree() && r.size > largest {
			largest = r.size
		}
	}
	return largest
}

func (m *TLSFBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

// placement is an allocation being searched for
type placement struct {
	size      int
	alignment int
	request   *AllocationRequest
}

func (m *TLSFBlockMetadata) CreateAllocationRequest(
	allocSize int, allocAlignment uint,
	strategy AllocationStrategy,
) (bool, AllocationRequest, error) {
	var request AllocationRequest

	if allocSize < 1 {
		return false, request, errors.Errorf("invalid allocSize: %d", allocSize)
	}
	if err := memutils.CheckPow2(allocAlignment, "allocAlignment"); err != nil {
		return false, request, err
	}

	memutils.DebugValidate(m)

	if allocSize > m.SumFreeSize() {
		return false, request, nil
	}

	p := &placement{size: allocSize, alignment: int(allocAlignment), request: &request}
	if m.freeCount == 0 {
		return m.tryNull(p), request, nil
	}

	var found bool
	fullSearchFrom := -1
	switch {
	case strategy&AllocationStrategyMinTime != 0:
		found, fullSearchFrom = m.searchMinTime(p)
	case strategy&AllocationStrategyMinMemory != 0:
		found, fullSearchFrom = m.searchMinMemory(p)
	case strategy&AllocationStrategyMinOffset != 0:
		found = m.searchMinOffset(p)
	default:
		found, fullSearchFrom = m.searchBalanced(p)
	}

	if found || fullSearchFrom < 0 {
		return found, request, nil
	}

	// Worst case: every list above the one already searched
	for index := fullSearchFrom + 1; index < len(m.freeLists); index++ {
		if m.tryList(m.freeLists[index], index, p) {
			return true, request, nil
		}
	}

	return false, request, nil
}

// searchMinTime tries the head of the first list whose regions are all large enough, then the
// null region, before falling back to scanning lists. The second return value is the list a
// full search continues after, or -1 if no full search is needed.
func (m *TLSFBlockMetadata) searchMinTime(p *placement) (bool, int) {
	larger, largerIndex := m.findFreeList(nextListSize(p.size))
	if larger != nil && m.tryRegion(larger, largerIndex, p) {
		return true, -1
	}
	if m.tryNull(p) {
		return true, -1
	}
	if m.tryList(larger, largerIndex, p) {
		return true, -1
	}

	bestFit, bestFitIndex := m.findFreeList(p.size)
	if m.tryList(bestFit, bestFitIndex, p) {
		return true, -1
	}

	if larger == nil {
		return false, -1
	}
	return false, largerIndex
}

// searchMinMemory tries the tightest list first, then the null region, then larger lists
func (m *TLSFBlockMetadata) searchMinMemory(p *placement) (bool, int) {
	bestFit, bestFitIndex := m.findFreeList(p.size)
	if m.tryList(bestFit, bestFitIndex, p) {
		return true, -1
	}
	if m.tryNull(p) {
		return true, -1
	}

	larger, largerIndex := m.findFreeList(nextListSize(p.size))
	if larger == nil {
		return false, -1
	}
	if m.tryList(larger, largerIndex, p) {
		return true, -1
	}
	return false, largerIndex
}

// searchMinOffset walks the physical chain from offset 0, so the lowest fitting gap wins
func (m *TLSFBlockMetadata) searchMinOffset(p *placement) bool {
	for r := m.firstRegion; r != m.nullRegion; r = r.nextPhysical {
		if r.isFree() && r.size >= p.size && m.tryRegion(r, listIndexForSize(r.size), p) {
			return true
		}
	}

	return m.tryNull(p)
}

func (m *TLSFBlockMetadata) searchBalanced(p *placement) (bool, int) {
	larger, largerIndex := m.findFreeList(nextListSize(p.size))
	if m.tryList(larger, largerIndex, p) {
		return true, -1
	}
	if m.tryNull(p) {
		return true, -1
	}

	bestFit, bestFitIndex := m.findFreeList(p.size)
	if m.tryList(bestFit, bestFitIndex, p) {
		return true, -1
	}

	if larger == nil {
		return false, -1
	}
	return false, largerIndex
}

func (m *TLSFBlockMetadata) tryList(head *region, index int, p *placement) bool {
	for r := head; r != nil; r = r.nextFree {
		if m.tryRegion(r, index, p) {
			return true
		}
	}
	return false
}

func (m *TLSFBlockMetadata) tryNull(p *placement) bool {
	return m.tryRegion(m.nullRegion, len(m.freeLists), p)
}

// tryRegion fills in p.request if the allocation fits in the free region r. A region that fits
// is moved to the head of its list so that a later search finds it first.
func (m *TLSFBlockMetadata) tryRegion(r *region, index int, p *placement) bool {
	if !r.isFree() {
		panic(fmt.Sprintf("region at offset %d is already taken", r.offset))
	}

	offset := memutils.AlignUp(r.offset, p.alignment)
	if r.end() < offset+p.size {
		return false
	}

	p.request.Type = AllocationRequestTLSF
	p.request.BlockAllocationHandle = r.handle
	p.request.Size = p.size
	p.request.Offset = offset

	if index != len(m.freeLists) && r.prevFree != nil {
		r.prevFree.nextFree = r.nextFree
		if r.nextFree != nil {
			r.nextFree.prevFree = r.prevFree
		}

		r.prevFree = nil
		r.nextFree = m.freeLists[index]
		m.freeLists[index] = r
		if r.nextFree != nil {
			r.nextFree.prevFree = r
		}
	}

	return true
}

// findFreeList returns the head of the first nonempty list whose regions are all at least size
// bytes, and that list's index
func (m *TLSFBlockMetadata) findFreeList(size int) (*region, int) {
	class := sizeClass(size)
	lists := m.listBitmaps[class] & (uint32(math.MaxUint32) << secondIndex(size, class))

	if lists == 0 {
		classes := m.classBitmap & (uint32(math.MaxUint32) << (class + 1))
		if classes == 0 {
			return nil, 0
		}

		class = uint8(bits.TrailingZeros32(classes))
		lists = m.listBitmaps[class]
		if lists == 0 {
			panic(fmt.Sprintf("size class %d is marked as having free regions but none of its lists do", class))
		}
	}

	index := listIndex(class, uint16(bits.TrailingZeros32(lists)))
	if m.freeLists[index] == nil {
		panic(fmt.Sprintf("free list %d is marked as having free regions but is empty", index))
	}

	return m.freeLists[index], index
}

func (m *TLSFBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	m.AddDetailedStatistics(&stats)

	m.printJsonHeader(json, stats.ZoneBytes-stats.AllocationBytes, stats.AllocationCount, stats.UnusedRangeCount)
}

func (m *TLSFBlockMetadata) Alloc(req AllocationRequest, userData any) error {
	if req.Type != AllocationRequestTLSF {
		return errors.Newf("allocation request of type %s was passed to TLSF metadata", req.Type)
	}

	r, err := m.getRegion(req.BlockAllocationHandle)
	if err != nil {
		return err
	}
	if !r.isFree() {
		return errors.Newf("allocation request targets the taken region at offset %d", r.offset)
	}
	if req.Offset < r.offset || r.end() < req.Offset+req.Size {
		return errors.Newf("allocation request for %d bytes at offset %d does not fit the region at offset %d", req.Size, req.Offset, r.offset)
	}

	if r != m.nullRegion {
		m.removeFree(r)
	}

	if padding := req.Offset - r.offset; padding != 0 {
		err = m.movePadding(r, padding)
		if err != nil {
			return err
		}
	}

	switch {
	case r == m.nullRegion:
		m.nullRegion = m.splitAfter(r, req.Size)
		m.nullRegion.markFree()
		r.markTaken()
	case r.size > req.Size:
		m.insertFree(m.splitAfter(r, req.Size))
	}

	r.userData = userData
	m.allocCount++

	return nil
}

// movePadding hands the first padding bytes of r to the region before it, or to a new free
// region when that one is taken
func (m *TLSFBlockMetadata) movePadding(r *region, padding int) error {
	prev := r.prevPhysical
	if prev == nil {
		return errors.Newf("alignment padding of %d bytes requested at offset 0", padding)
	}

	if prev.isFree() {
		m.removeFree(prev)
		prev.size += padding
		m.insertFree(prev)
	} else {
		pad := m.newRegion()
		pad.offset = r.offset
		pad.size = padding
		pad.prevPhysical = prev
		pad.nextPhysical = r
		prev.nextPhysical = pad
		r.prevPhysical = pad
		pad.markTaken()

		m.insertFree(pad)
	}

	r.offset += padding
	r.size -= padding
	return nil
}

// splitAfter cuts r down to size bytes and returns a new taken region holding the rest, linked
// in directly after r. The new region may be empty.
func (m *TLSFBlockMetadata) splitAfter(r *region, size int) *region {
	rest := m.newRegion()
	rest.offset = r.offset + size
	rest.size = r.size - size
	rest.prevPhysical = r
	rest.nextPhysical = r.nextPhysical
	if rest.nextPhysical != nil {
		rest.nextPhysical.prevPhysical = rest
	}
	rest.markTaken()

	r.nextPhysical = rest
	r.size = size
	return rest
}

func (m *TLSFBlockMetadata) Free(allocHandle BlockAllocationHandle) error {
	r, err := m.getRegion(allocHandle)
	if err != nil {
		return err
	}
	if r.isFree() {
		return errors.Newf("the region at offset %d is already free", r.offset)
	}

	m.allocCount--

	if prev := r.prevPhysical; prev != nil && prev.isFree() {
		m.removeFree(prev)
		m.absorbPrevious(r)
	}

	next := r.nextPhysical
	switch {
	case next == m.nullRegion:
		m.absorbPrevious(next)
	case next.isFree():
		m.removeFree(next)
		m.absorbPrevious(next)
		m.insertFree(next)
	default:
		m.insertFree(r)
	}

	return nil
}

func (m *TLSFBlockMetadata) Resize(allocHandle BlockAllocationHandle, newSize int) (bool, error) {
	if newSize < 1 {
		return false, errors.Errorf("invalid newSize: %d", newSize)
	}

	r, err := m.getLiveRegion(allocHandle)
	if err != nil {
		return false, err
	}

	next := r.nextPhysical

	if newSize < r.size {
		excess := r.size - newSize

		switch {
		case next == m.nullRegion:
			next.offset -= excess
			next.size += excess
		case next.isFree():
			m.removeFree(next)
			next.offset -= excess
			next.size += excess
			m.insertFree(next)
		default:
			m.insertFree(m.splitAfter(r, newSize))
			return true, nil
		}

		r.size = newSize
		return true, nil
	}

	extra := newSize - r.size
	if extra == 0 {
		return true, nil
	}
	if !next.isFree() || next.size < extra {
		return false, nil
	}

	switch {
	case next == m.nullRegion:
		next.offset += extra
		next.size -= extra
	case next.size == extra:
		m.removeFree(next)
		r.nextPhysical = next.nextPhysical
		next.nextPhysical.prevPhysical = r
		m.releaseRegion(next)
	default:
		m.removeFree(next)
		next.offset += extra
		next.size -= extra
		m.insertFree(next)
	}

	r.size = newSize
	return true, nil
}

// removeFree takes r out of its free list and marks it taken
func (m *TLSFBlockMetadata) removeFree(r *region) {
	if r == m.nullRegion {
		panic("the null region is never in a free list")
	}
	if !r.isFree() {
		panic(fmt.Sprintf("region at offset %d is not free", r.offset))
	}

	if r.nextFree != nil {
		r.nextFree.prevFree = r.prevFree
	}

	if r.prevFree != nil {
		r.prevFree.nextFree = r.nextFree
	} else {
		class := sizeClass(r.size)
		second := secondIndex(r.size, class)
		index := listIndex(class, second)

		if m.freeLists[index] != r {
			panic(fmt.Sprintf("region at offset %d is not at the head of free list %d", r.offset, index))
		}

		m.freeLists[index] = r.nextFree
		if r.nextFree == nil {
			m.listBitmaps[class] &^= 1 << second
			if m.listBitmaps[class] == 0 {
				m.classBitmap &^= 1 << class
			}
		}
	}

	r.markTaken()
	r.nextFree = nil
	r.userData = nil
	m.freeCount--
	m.freeBytes -= r.size
}

// insertFree pushes the taken region r onto the head of the free list for its size
func (m *TLSFBlockMetadata) insertFree(r *region) {
	if r == m.nullRegion {
		panic("the null region is never in a free list")
	}
	if r.isFree() {
		panic(fmt.Sprintf("region at offset %d is already free", r.offset))
	}

	class := sizeClass(r.size)
	second := secondIndex(r.size, class)
	index := listIndex(class, second)
	if index >= len(m.freeLists) {
		panic(fmt.Sprintf("region at offset %d with %d bytes is larger than the zone", r.offset, r.size))
	}

	r.prevFree = nil
	r.nextFree = m.freeLists[index]
	r.userData = nil
	m.freeLists[index] = r
	if r.nextFree != nil {
		r.nextFree.prevFree = r
	} else {
		m.listBitmaps[class] |= 1 << second
		m.classBitmap |= 1 << class
	}

	m.freeCount++
	m.freeBytes += r.size
}

// absorbPrevious merges the region before r into r. Neither may be in a free list.
func (m *TLSFBlockMetadata) absorbPrevious(r *region) {
	prev := r.prevPhysical
	if prev.isFree() {
		panic(fmt.Sprintf("region at offset %d is still in a free list", prev.offset))
	}

	r.offset = prev.offset
	r.size += prev.size
	r.prevPhysical = prev.prevPhysical
	if r.prevPhysical != nil {
		r.prevPhysical.nextPhysical = r
	} else {
		m.firstRegion = r
	}

	m.releaseRegion(prev)
}

func (m *TLSFBlockMetadata) VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error {
	for r := m.firstRegion; r != nil; r = r.nextPhysical {
		if r == m.nullRegion && r.size == 0 {
			break
		}

		err := handleBlock(r.handle, r.offset, r.size, r.userData, r.isFree())
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *TLSFBlockMetadata) Clear() {
	r := m.firstRegion
	for r != m.nullRegion {
		next := r.nextPhysical
		m.releaseRegion(r)
		r = next
	}

	m.allocCount = 0
	m.freeCount = 0
	m.freeBytes = 0
	m.classBitmap = 0
	m.listBitmaps = [maxSizeClasses]uint32{}
	m.freeLists = make([]*region, len(m.freeLists))

	m.nullRegion.offset = 0
	m.nullRegion.size = m.size
	m.nullRegion.prevPhysical = nil
	m.firstRegion = m.nullRegion
}

func (m *TLSFBlockMetadata) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int, userData any)) {
	for r := m.firstRegion; r != nil; r = r.nextPhysical {
		if !r.isFree() {
			logFunc(logger, r.offset, r.size, r.userData)
		}
	}
}

func (m *TLSFBlockMetadata) AllocationOffset(allocHandle BlockAllocationHandle) (int, error) {
	r, err := m.getLiveRegion(allocHandle)
	if err != nil {
		return 0, err
	}
	return r.offset, nil
}

func (m *TLSFBlockMetadata) AllocationSize(allocHandle BlockAllocationHandle) (int, error) {
	r, err := m.getLiveRegion(allocHandle)
	if err != nil {
		return 0, err
	}
	return r.size, nil
}

func (m *TLSFBlockMetadata) AllocationUserData(allocHandle BlockAllocationHandle) (any, error) {
	r, err := m.getLiveRegion(allocHandle)
	if err != nil {
		return nil, err
	}
	return r.userData, nil
}

func (m *TLSFBlockMetadata) SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error {
	r, err := m.getLiveRegion(allocHandle)
	if err != nil {
		return err
	}

	r.userData = userData
	return nil
}
