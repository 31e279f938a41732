package guest

// BlockCopy copies length bytes from src to dest inside the guest address space. The result is
// the same as if every source byte had been captured before any destination byte was written:
// when the ranges overlap, the copy walks ascending if dest is below src and descending if dest
// is above it. Zero-length copies and copies onto the same address touch nothing.
//
// An access fault stops the copy where it happened and is returned unchanged. Bytes written
// before the fault stay written.
func BlockCopy(mem Memory, src, dest Address, length uint32) error {
	if length == 0 || src == dest {
		return nil
	}

	if dest < src {
		for i := uint32(0); i < length; i++ {
			if err := copyByte(mem, src+i, dest+i); err != nil {
				return err
			}
		}
		return nil
	}

	for i := length; i > 0; i-- {
		if err := copyByte(mem, src+i-1, dest+i-1); err != nil {
			return err
		}
	}
	return nil
}

func copyByte(mem Memory, src, dest Address) error {
	value, err := mem.ReadU8(src)
	if err != nil {
		return err
	}
	return mem.WriteU8(dest, value)
}

// Fill writes value to length bytes starting at addr
func Fill(mem Memory, addr Address, length uint32, value uint8) error {
	for i := uint32(0); i < length; i++ {
		if err := mem.WriteU8(addr+i, value); err != nil {
			return err
		}
	}
	return nil
}
