package metadata

// AllocationRequestType is an enum that indicates the type of allocation that is being made.
// It is returned in AllocationRequest from CreateAllocationRequest
type AllocationRequestType uint32

const (
	// AllocationRequestTLSF indicates that the allocation request was sourced from metadata.TLSFBlockMetadata
	AllocationRequestTLSF AllocationRequestType = iota
)

var allocationRequestMapping = map[AllocationRequestType]string{
	AllocationRequestTLSF: "TLSF",
}

func (t AllocationRequestType) String() string {
	return allocationRequestMapping[t]
}

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates where
// the metadata intends to place a new allocation. The caller may inspect Offset before committing the
// request with BlockMetadata.Alloc.
type AllocationRequest struct {
	// BlockAllocationHandle identifies the free region the allocation will be carved from. Once
	// committed it identifies the allocation itself.
	BlockAllocationHandle BlockAllocationHandle
	// Size is the total size of the allocation in bytes
	Size int
	// Offset is the offset the allocation will start at
	Offset int
	// Type identifies the BlockMetadata implementation that produced this request
	Type AllocationRequestType
}
