package correction

// boolXOR performs XOR operation on multiple boolean values
func boolXOR(values ...bool) bool {
	result := false
	for _, v := range values {
		result = result != v // Boolean XOR
	}
	return result
}

// EncodeHamming84 encodes a 4-bit nibble into an 8-bit Hamming(8,4) SECDED
// codeword (minimum distance 4): the low 4 bits carry the data nibble, the
// high 4 bits carry parity.
func EncodeHamming84(nibble uint8) uint8 {
	nibble &= 0x0F
	d0 := nibble&0x01 != 0
	d1 := nibble&0x02 != 0
	d2 := nibble&0x04 != 0
	d3 := nibble&0x08 != 0

	p0 := boolXOR(d0, d1, d2)
	p1 := boolXOR(d1, d2, d3)
	p2 := boolXOR(d0, d1, d3)
	p3 := boolXOR(d0, d2, d3)

	cw := nibble
	if p0 {
		cw |= 1 << 4
	}
	if p1 {
		cw |= 1 << 5
	}
	if p2 {
		cw |= 1 << 6
	}
	if p3 {
		cw |= 1 << 7
	}
	return cw
}

// DecodeHamming84 decodes an 8-bit Hamming(8,4) codeword. It returns the
// recovered nibble plus two out-parameters: err is set whenever the
// syndrome is nonzero (the word differed from what was transmitted); bad is
// set only when the syndrome does not correspond to any single-bit error
// position, meaning the codeword is uncorrectable. When bad is true, the
// returned nibble is the value obtained by simply zeroing the parity bits
// (the data bits as received, uncorrected) — the exact recovered value is
// not required in that case, only that the flag is set.
func DecodeHamming84(codeword uint8) (nibble uint8, err bool, bad bool) {
	d0 := codeword&0x01 != 0
	d1 := codeword&0x02 != 0
	d2 := codeword&0x04 != 0
	d3 := codeword&0x08 != 0
	p0 := codeword&0x10 != 0
	p1 := codeword&0x20 != 0
	p2 := codeword&0x40 != 0
	p3 := codeword&0x80 != 0

	var syndrome uint8
	if boolXOR(d0, d1, d2) != p0 {
		syndrome |= 0x1
	}
	if boolXOR(d1, d2, d3) != p1 {
		syndrome |= 0x2
	}
	if boolXOR(d0, d1, d3) != p2 {
		syndrome |= 0x4
	}
	if boolXOR(d0, d2, d3) != p3 {
		syndrome |= 0x8
	}

	data := codeword & 0x0F

	switch syndrome {
	case 0x0:
		return data, false, false

	// Single data-bit errors.
	case 0xD:
		return data ^ 0x1, true, false
	case 0x7:
		return data ^ 0x2, true, false
	case 0xB:
		return data ^ 0x4, true, false
	case 0xE:
		return data ^ 0x8, true, false

	// Single parity-bit errors: data bits are already correct.
	case 0x1, 0x2, 0x4, 0x8:
		return data, true, false

	// Any other nonzero syndrome indicates a double-bit (or worse) error
	// that this code cannot correct.
	default:
		return data, true, true
	}
}
