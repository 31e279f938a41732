package shim

import "fmt"

// Result is what a handler hands back for the emulated return slot: either nothing, for a void
// API, or a single 32-bit value.
type Result struct {
	value    uint32
	hasValue bool
}

// Void is the result of an API with no return value
func Void() Result {
	return Result{}
}

// Return is the result of an API that returns value
func Return(value uint32) Result {
	return Result{value: value, hasValue: true}
}

// Value returns the returned value and whether there is one
func (r Result) Value() (uint32, bool) {
	return r.value, r.hasValue
}

func (r Result) String() string {
	if !r.hasValue {
		return "void"
	}
	return fmt.Sprintf("%08X", r.value)
}
