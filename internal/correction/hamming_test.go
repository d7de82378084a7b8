package correction

import "testing"

func TestHamming84RoundTrip(t *testing.T) {
	for v := uint8(0); v < 16; v++ {
		enc := EncodeHamming84(v)
		nibble, err, bad := DecodeHamming84(enc)
		if err || bad {
			t.Fatalf("nibble %d: decode of clean codeword reported err=%v bad=%v", v, err, bad)
		}
		if nibble != v {
			t.Fatalf("nibble %d: decode returned %d", v, nibble)
		}
	}
}

func TestHamming84CorrectsSingleBitErrors(t *testing.T) {
	for v := uint8(0); v < 16; v++ {
		enc := EncodeHamming84(v)
		for bit := 0; bit < 8; bit++ {
			corrupted := enc ^ (1 << bit)
			nibble, err, bad := DecodeHamming84(corrupted)
			if !err {
				t.Fatalf("nibble %d bit %d: expected err=true for a single-bit flip", v, bit)
			}
			if bad {
				t.Fatalf("nibble %d bit %d: single-bit flip incorrectly reported bad=true", v, bit)
			}
			if nibble != v {
				t.Fatalf("nibble %d bit %d: corrected decode = %d, want %d", v, bit, nibble, v)
			}
		}
	}
}

func TestHamming84DetectsDoubleBitErrors(t *testing.T) {
	foundBad := false
	for v := uint8(0); v < 16; v++ {
		enc := EncodeHamming84(v)
		for b1 := 0; b1 < 8; b1++ {
			for b2 := b1 + 1; b2 < 8; b2++ {
				corrupted := enc ^ (1 << b1) ^ (1 << b2)
				_, err, bad := DecodeHamming84(corrupted)
				if !err {
					t.Fatalf("nibble %d bits %d,%d: double flip must report err=true", v, b1, b2)
				}
				if bad {
					foundBad = true
				}
			}
		}
	}
	if !foundBad {
		t.Fatal("expected at least one double-bit-flip pattern to set bad=true")
	}
}

func TestHamming84MinimumDistance(t *testing.T) {
	for a := uint8(0); a < 16; a++ {
		for b := a + 1; b < 16; b++ {
			ca, cb := EncodeHamming84(a), EncodeHamming84(b)
			if hammingWeight(ca^cb) < 4 {
				t.Fatalf("codewords for %d and %d differ in fewer than 4 bits", a, b)
			}
		}
	}
}

func hammingWeight(v uint8) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}
