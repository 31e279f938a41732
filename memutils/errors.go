package memutils

import "github.com/cockroachdb/errors"

// ErrPowerOfTwo is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var ErrPowerOfTwo = errors.New("number must be a power of two")

// ErrZoneTooSmall is returned when a zone cannot hold even a single minimal allocation
var ErrZoneTooSmall = errors.New("zone is too small")
