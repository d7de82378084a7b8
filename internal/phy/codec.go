package phy

import (
	"fmt"

	"github.com/lora-phy/modem/internal/correction"
	"github.com/lora-phy/modem/internal/interleave"
)

// whitenPolyTapA and whitenPolyTapB are the feedback taps of the 9-bit
// whitening LFSR (x^9 + x^5 + 1). The exact polynomial is not pinned by
// any reference implementation this codec interoperates with; it only
// needs to be an involution (encode and decode run the identical
// generator), which any fixed linear-feedback tap set guarantees.
const (
	whitenPolyTapA = 0
	whitenPolyTapB = 5
)

// whitenXOR XORs data in place against a PN9-style whitening stream seeded
// from a fixed initial state, and returns data for chaining.
func whitenXOR(data []byte) []byte {
	state := uint16(0x1FF)
	for i, b := range data {
		var wb byte
		for bit := 0; bit < 8; bit++ {
			out := byte(state & 1)
			wb |= out << bit
			fb := ((state >> whitenPolyTapA) ^ (state >> whitenPolyTapB)) & 1
			state = (state >> 1) | (fb << 8)
		}
		data[i] = b ^ wb
	}
	return data
}

// Encode runs the PHY TX codec: optional whitening, nibble split (high
// nibble first), Hamming(8,4) encode truncated to the coding rate's
// codeword width, zero-padding up to a whole number of sf-row interleaver
// blocks, and diagonal interleave. The returned slice aliases symbols.
func (ws *Workspace) Encode(payload []byte, symbols []uint16) ([]uint16, error) {
	out, _, err := ws.encodeTrace(payload)
	if err != nil {
		return nil, err
	}
	if len(symbols) < len(out) {
		return nil, fmt.Errorf("%w: symbol capacity %d < required %d", ErrCapacityTooSmall, len(symbols), len(out))
	}
	n := copy(symbols, out)
	return symbols[:n], nil
}

// EncodeTrace runs the same TX codec as Encode but also returns the
// padded, width-truncated codewords that went into the interleaver — the
// intermediate stage the vector generator dumps as pre_interleave.csv.
func (ws *Workspace) EncodeTrace(payload []byte) (symbols []uint16, codewords []uint8, err error) {
	return ws.encodeTrace(payload)
}

func (ws *Workspace) encodeTrace(payload []byte) ([]uint16, []uint8, error) {
	data := append([]byte(nil), payload...)
	if ws.params.Whiten {
		whitenXOR(data)
	}

	nibbles := make([]uint8, 0, len(data)*2)
	for _, b := range data {
		nibbles = append(nibbles, b>>4, b&0x0F)
	}

	rdd := ws.rdd
	width := 4 + rdd
	mask := uint8((1 << width) - 1)
	codewords := make([]uint8, len(nibbles))
	for i, nb := range nibbles {
		codewords[i] = correction.EncodeHamming84(nb) & mask
	}

	if rem := len(codewords) % ws.params.SF; rem != 0 {
		codewords = append(codewords, make([]uint8, ws.params.SF-rem)...)
	}

	out, err := interleave.Interleave(codewords, ws.params.SF, rdd)
	if err != nil {
		return nil, nil, err
	}
	return out, codewords, nil
}

// Decode runs the PHY RX codec: deinterleave, Hamming(8,4) decode with
// single-bit correction, nibble repacking, optional unwhitening, and the
// SX1272-style CRC-16 check. The decoded buffer includes any interleaver
// block padding Encode added; truncating to a known payload length is the
// caller's responsibility.
func (ws *Workspace) Decode(symbols []uint16, payload []byte) ([]byte, error) {
	data, _, err := ws.decodeTrace(symbols)
	if err != nil {
		return nil, err
	}
	if len(payload) < len(data) {
		return nil, fmt.Errorf("%w: payload capacity %d < decoded length %d", ErrCapacityTooSmall, len(payload), len(data))
	}
	n := copy(payload, data)
	return payload[:n], nil
}

// DecodeTrace runs the same RX codec as Decode but also returns the
// deinterleaved codewords — the intermediate stage the vector generator
// dumps as deinterleave.csv.
func (ws *Workspace) DecodeTrace(symbols []uint16) (payload []byte, codewords []uint8, err error) {
	return ws.decodeTrace(symbols)
}

func (ws *Workspace) decodeTrace(symbols []uint16) ([]byte, []uint8, error) {
	rdd := ws.rdd
	width := 4 + rdd
	if len(symbols)%width != 0 {
		return nil, nil, fmt.Errorf("%w: symbol count %d not a multiple of (4+rdd)=%d", ErrShapeMismatch, len(symbols), width)
	}

	codewords, err := interleave.Deinterleave(symbols, ws.params.SF, rdd)
	if err != nil {
		return nil, nil, err
	}

	var frameErrors uint32
	mask := uint8((1 << width) - 1)
	nibbles := make([]uint8, len(codewords))
	for i, cw := range codewords {
		// Fill the parity bits Encode truncated away with the values the
		// received data bits imply, so only transmitted parity bits
		// contribute to the syndrome.
		cw |= correction.EncodeHamming84(cw&0x0F) &^ mask
		nibble, errFlag, _ := correction.DecodeHamming84(cw)
		if errFlag {
			frameErrors++
		}
		nibbles[i] = nibble
	}
	if len(nibbles)%2 != 0 {
		nibbles = append(nibbles, 0)
	}

	data := make([]byte, len(nibbles)/2)
	for i := range data {
		data[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	if ws.params.Whiten {
		whitenXOR(data) // XOR is its own inverse
	}

	ws.metrics.FrameErrors = frameErrors
	ws.metrics.CRCOK = checkSX1272Checksum(data)

	return data, codewords, nil
}

// checkSX1272Checksum reports whether data's trailing 2 bytes form a valid
// little-endian SX1272 data checksum over data[2:len(data)-2]. Buffers
// shorter than 4 bytes cannot carry a checksum and are reported as invalid.
func checkSX1272Checksum(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	dataLen := len(data) - 4
	covered := data[2 : 2+dataLen]
	calc := correction.SX1272DataChecksum(covered)
	provided := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
	return provided == calc
}
