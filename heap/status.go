package heap

import "strconv"

// StatusCode is a classic Memory Manager result code. The guest sees it as a 16-bit signed value,
// sign-extended when it is returned in a 32-bit slot.
type StatusCode int16

const (
	NoErr        StatusCode = 0
	MemFullErr   StatusCode = -108
	NilHandleErr StatusCode = -109
	MemAdrErr    StatusCode = -110
	MemWZErr     StatusCode = -111
	MemPurErr    StatusCode = -112
	MemAZErr     StatusCode = -113
	MemPCErr     StatusCode = -114
	MemBCErr     StatusCode = -115
	MemSCErr     StatusCode = -116
	MemLockedErr StatusCode = -117
)

var statusCodeMapping = map[StatusCode]string{
	NoErr:        "noErr",
	MemFullErr:   "memFullErr",
	NilHandleErr: "nilHandleErr",
	MemAdrErr:    "memAdrErr",
	MemWZErr:     "memWZErr",
	MemPurErr:    "memPurErr",
	MemAZErr:     "memAZErr",
	MemPCErr:     "memPCErr",
	MemBCErr:     "memBCErr",
	MemSCErr:     "memSCErr",
	MemLockedErr: "memLockedErr",
}

func (c StatusCode) String() string {
	str, ok := statusCodeMapping[c]
	if !ok {
		return strconv.Itoa(int(c))
	}
	return str
}

// U32 returns the code as the guest sees it in a 32-bit return slot
func (c StatusCode) U32() uint32 {
	return uint32(int32(c))
}
