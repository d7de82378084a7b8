package lorawan

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/lora-phy/modem/internal/phy"
	"github.com/lora-phy/modem/internal/store"
)

func newTestWorkspace(t *testing.T) *phy.Workspace {
	t.Helper()
	ws, err := phy.Init(phy.Params{SF: 8, BW: phy.BW125, CR: 4, OSR: 1})
	if err != nil {
		t.Fatalf("phy.Init: %v", err)
	}
	return ws
}

func TestBuildParseFrameRoundTrip(t *testing.T) {
	ws := newTestWorkspace(t)
	rng := rand.New(rand.NewSource(3))
	payload := make([]byte, 8)
	rng.Read(payload)

	frame := Frame{
		MHDR: MHDR{MType: MTypeUnconfirmedDataUp, Major: 0},
		FHDR: FHDR{DevAddr: 0x01020304, FCnt: 1},
		Payload: payload,
	}

	symbols := make([]uint16, 512)
	symbols, err := BuildFrame(ws, frame, symbols)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	got, err := ParseFrame(ws, symbols, nil)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}

	if got.MHDR != frame.MHDR {
		t.Fatalf("MHDR = %+v, want %+v", got.MHDR, frame.MHDR)
	}
	if got.FHDR.DevAddr != frame.FHDR.DevAddr || got.FHDR.FCnt != frame.FHDR.FCnt {
		t.Fatalf("FHDR = %+v, want DevAddr/FCnt %x/%d", got.FHDR, frame.FHDR.DevAddr, frame.FHDR.FCnt)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("Payload = %x, want %x", got.Payload, payload)
	}
}

func TestParseFrameDetectsMICMismatch(t *testing.T) {
	ws := newTestWorkspace(t)
	frame := Frame{
		MHDR:    MHDR{MType: MTypeUnconfirmedDataUp},
		FHDR:    FHDR{DevAddr: 0x01020304, FCnt: 1},
		Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	symbols := make([]uint16, 512)
	symbols, err := BuildFrame(ws, frame, symbols)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	// Decode back to bytes, flip a MIC byte, and re-encode: the diagonal
	// interleaver spreads a single symbol's bits across distinct Hamming
	// codewords, so corrupting bits at the symbol level is usually
	// correctable outright. Corrupting at the byte level, the way a
	// genuinely flipped MIC byte would arrive, is what the spec's flip-
	// any-MIC-byte scenario actually means.
	//
	// decoded carries the real frame (length prefix + body + MIC) followed
	// by whatever zero padding Encode added to fill out a whole number of
	// interleaver blocks, so the byte to flip is the last byte of the real
	// frame, not decoded's own tail.
	decodedBuf := make([]byte, 512)
	decoded, err := ws.Decode(symbols, decodedBuf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	bodyLen := 1 + 4 + 1 + 2 + len(frame.FHDR.FOpts) + len(frame.Payload)
	frameLen := lengthFieldSize + bodyLen + 4
	corrupted := append([]byte(nil), decoded...)
	corrupted[frameLen-1] ^= 0xFF

	corruptedSymbols := make([]uint16, 512)
	corruptedSymbols, err = ws.Encode(corrupted, corruptedSymbols)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = ParseFrame(ws, corruptedSymbols, nil)
	if !errors.Is(err, ErrMICMismatch) {
		t.Fatalf("expected ErrMICMismatch, got %v", err)
	}
}

func TestParseFrameDistinguishesShapeFromMICMismatch(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ParseFrame(ws, make([]uint16, 8), nil)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for a too-short frame, got %v", err)
	}
}

// TestParseFrameRoundTripWithInterleaverPadding uses sf=7, where a frame
// carrying a 20-byte payload decodes to bytes well short of a multiple of
// sf nibbles, so Decode's output includes trailing interleaver padding
// past the real frame. ParseFrame must use the carried length to find the
// MIC rather than trusting bytesOut's own tail.
func TestParseFrameRoundTripWithInterleaverPadding(t *testing.T) {
	ws, err := phy.Init(phy.Params{SF: 7, BW: phy.BW125, CR: 4, OSR: 1})
	if err != nil {
		t.Fatalf("phy.Init: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, 20)
	rng.Read(payload)

	frame := Frame{
		MHDR:    MHDR{MType: MTypeUnconfirmedDataUp, Major: 0},
		FHDR:    FHDR{DevAddr: 0xAABBCCDD, FCnt: 42},
		Payload: payload,
	}

	symbols := make([]uint16, 1024)
	symbols, err = BuildFrame(ws, frame, symbols)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	got, err := ParseFrame(ws, symbols, nil)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if got.FHDR.DevAddr != frame.FHDR.DevAddr || got.FHDR.FCnt != frame.FHDR.FCnt {
		t.Fatalf("FHDR = %+v, want DevAddr/FCnt %x/%d", got.FHDR, frame.FHDR.DevAddr, frame.FHDR.FCnt)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("Payload = %x, want %x", got.Payload, payload)
	}
}

func TestParseFrameFlagsReplay(t *testing.T) {
	ws := newTestWorkspace(t)
	sessions, err := store.NewStore(store.Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	defer sessions.Close()

	frame := Frame{
		MHDR:    MHDR{MType: MTypeUnconfirmedDataUp},
		FHDR:    FHDR{DevAddr: 0x01020304, FCnt: 5},
		Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	symbols := make([]uint16, 512)
	symbols, err = BuildFrame(ws, frame, symbols)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	if _, err := ParseFrame(ws, symbols, sessions); err != nil {
		t.Fatalf("first ParseFrame: %v", err)
	}
	if _, err := ParseFrame(ws, symbols, sessions); !errors.Is(err, ErrReplayed) {
		t.Fatalf("expected ErrReplayed on the repeated frame, got %v", err)
	}
}
