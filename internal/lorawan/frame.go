// Package lorawan implements a thin LoRaWAN-style framing shim over the
// PHY codec: MHDR/FHDR/FRMPayload serialization and a CRC-32 MIC standing
// in for the real AES-128 CMAC.
package lorawan

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/lora-phy/modem/internal/phy"
	"github.com/lora-phy/modem/internal/store"
)

// MType is the LoRaWAN message type carried in MHDR's top 3 bits.
type MType uint8

const (
	MTypeJoinRequest         MType = 0
	MTypeJoinAccept          MType = 1
	MTypeUnconfirmedDataUp   MType = 2
	MTypeUnconfirmedDataDown MType = 3
	MTypeConfirmedDataUp     MType = 4
	MTypeConfirmedDataDown   MType = 5
	MTypeRFU                 MType = 6
	MTypeProprietary         MType = 7
)

// lengthFieldSize is the width of the frame-length prefix BuildFrame writes
// ahead of MHDR so ParseFrame can truncate Decode's output to the true
// frame before slicing the MIC, discarding any interleaver block padding
// Encode appended past the end of the real frame.
const lengthFieldSize = 2

// minFrameLen is the length prefix(2) + MHDR(1) + DevAddr(4) + FCtrl(1) +
// FCnt(2) + MIC(4), the smallest legal frame with no FOpts and an empty
// FRMPayload.
const minFrameLen = lengthFieldSize + 1 + 4 + 1 + 2 + 4

// MHDR is the one-byte message header.
type MHDR struct {
	MType MType
	Major uint8 // 2 bits
}

func (m MHDR) encode() byte {
	return byte(m.MType)<<5 | m.Major&0x3
}

func decodeMHDR(b byte) MHDR {
	return MHDR{MType: MType(b >> 5), Major: b & 0x3}
}

// FHDR is the frame header: device address, control flags, frame counter,
// and optional MAC commands.
type FHDR struct {
	DevAddr uint32
	FCtrl   byte // high nibble carries ADR/ACK/FPending flags; low nibble is FOpts length, set by BuildFrame
	FCnt    uint16
	FOpts   []byte
}

// Frame is a decoded LoRaWAN-style uplink/downlink frame.
type Frame struct {
	MHDR    MHDR
	FHDR    FHDR
	Payload []byte
}

// computeMIC returns the CRC-32 (IEEE 802.3: poly 0xEDB88320 reflected,
// init/final XOR 0xFFFFFFFF) over data, standing in for LoRaWAN's real
// AES-128 CMAC.
func computeMIC(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// BuildFrame serializes frame's MHDR+FHDR+FRMPayload behind an explicit
// length prefix, appends a CRC-32 MIC over the prefix and body together,
// and runs the result through ws.Encode, writing into the caller-owned
// symbols buffer. The length prefix is what lets ParseFrame tell the real
// frame apart from the interleaver's sf-multiple zero padding.
func BuildFrame(ws *phy.Workspace, frame Frame, symbols []uint16) ([]uint16, error) {
	body := make([]byte, 0, minFrameLen-lengthFieldSize+len(frame.FHDR.FOpts)+len(frame.Payload))
	body = append(body, frame.MHDR.encode())

	var devAddr [4]byte
	binary.LittleEndian.PutUint32(devAddr[:], frame.FHDR.DevAddr)
	body = append(body, devAddr[:]...)

	fctrl := (frame.FHDR.FCtrl & 0xF0) | byte(len(frame.FHDR.FOpts))&0x0F
	body = append(body, fctrl)

	var fcnt [2]byte
	binary.LittleEndian.PutUint16(fcnt[:], frame.FHDR.FCnt)
	body = append(body, fcnt[:]...)

	body = append(body, frame.FHDR.FOpts...)
	body = append(body, frame.Payload...)

	buf := make([]byte, 0, lengthFieldSize+len(body)+4)
	var bodyLen [lengthFieldSize]byte
	binary.LittleEndian.PutUint16(bodyLen[:], uint16(len(body)))
	buf = append(buf, bodyLen[:]...)
	buf = append(buf, body...)

	mic := computeMIC(buf)
	var micBytes [4]byte
	binary.LittleEndian.PutUint32(micBytes[:], mic)
	buf = append(buf, micBytes[:]...)

	return ws.Encode(buf, symbols)
}

// ParseFrame runs symbols through ws.Decode, verifies the MIC, and
// deserializes the MHDR/FHDR/FRMPayload layout. If sessions is non-nil, it
// also checks frame.FHDR.FCnt against the device's last-seen counter and
// reports ErrReplayed (without failing the parse) when it regresses or
// repeats.
func ParseFrame(ws *phy.Workspace, symbols []uint16, sessions *store.Store) (Frame, error) {
	var frame Frame

	decoded := make([]byte, len(symbols)*3+16)
	bytesOut, err := ws.Decode(symbols, decoded)
	if err != nil {
		return frame, err
	}
	if len(bytesOut) < lengthFieldSize {
		return frame, fmt.Errorf("%w: decoded %d bytes, need at least %d for the length prefix", ErrShapeMismatch, len(bytesOut), lengthFieldSize)
	}

	// bytesOut carries the real frame followed by whatever zero padding
	// Encode added to reach a whole number of sf-row interleaver blocks;
	// the carried length is what lets us discard that padding before
	// trusting anything past the real frame as the MIC.
	bodyLen := int(binary.LittleEndian.Uint16(bytesOut[:lengthFieldSize]))
	frameLen := lengthFieldSize + bodyLen + 4
	if frameLen < minFrameLen {
		return frame, fmt.Errorf("%w: carried frame length %d shorter than minimum %d", ErrShapeMismatch, frameLen, minFrameLen)
	}
	if frameLen > len(bytesOut) {
		return frame, fmt.Errorf("%w: carried frame length %d exceeds decoded %d bytes", ErrShapeMismatch, frameLen, len(bytesOut))
	}

	micCovered := bytesOut[:frameLen-4]
	micBytes := bytesOut[frameLen-4 : frameLen]
	mic := binary.LittleEndian.Uint32(micBytes)
	if calc := computeMIC(micCovered); mic != calc {
		return frame, fmt.Errorf("%w: got 0x%08X, computed 0x%08X", ErrMICMismatch, mic, calc)
	}

	body := micCovered[lengthFieldSize:]

	idx := 0
	frame.MHDR = decodeMHDR(body[idx])
	idx++
	frame.FHDR.DevAddr = binary.LittleEndian.Uint32(body[idx : idx+4])
	idx += 4
	frame.FHDR.FCtrl = body[idx]
	idx++
	foptsLen := int(frame.FHDR.FCtrl & 0x0F)
	frame.FHDR.FCnt = binary.LittleEndian.Uint16(body[idx : idx+2])
	idx += 2
	if idx+foptsLen > len(body) {
		return frame, fmt.Errorf("%w: fopts length %d overruns frame", ErrShapeMismatch, foptsLen)
	}
	frame.FHDR.FOpts = append([]byte(nil), body[idx:idx+foptsLen]...)
	idx += foptsLen
	frame.Payload = append([]byte(nil), body[idx:]...)

	if sessions != nil {
		replayed, err := sessions.CheckAndAdvance(frame.FHDR.DevAddr, uint32(frame.FHDR.FCnt))
		if err != nil {
			return frame, fmt.Errorf("checking replay session: %w", err)
		}
		if replayed {
			return frame, ErrReplayed
		}
	}

	return frame, nil
}
