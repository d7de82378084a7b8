// Command tx modulates a payload into a LoRa IQ stream, written either to
// a file or to stdout as interleaved little-endian float32 real/imag
// pairs.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/lora-phy/modem/internal/phy"
)

func main() {
	var (
		sf         = flag.Int("sf", 7, "spreading factor, 7..12")
		bw         = flag.Int("bw", 125000, "bandwidth in Hz: 125000, 250000, or 500000")
		cr         = flag.Int("cr", 4, "coding rate, 1..4")
		osr        = flag.Int("osr", 1, "oversampling ratio")
		payloadHex = flag.String("payload", "", "payload bytes as hex, e.g. DEADBEEF")
		inPath     = flag.String("in", "", "path to a raw payload file (overrides --payload)")
		outPath    = flag.String("out", "", "path to write IQ samples (default: stdout)")
		toStdout   = flag.Bool("stdout", false, "force writing IQ samples to stdout even if --out is set")
		preambleUp = flag.Int("preamble-up", 0, "number of preamble upchirps to prepend, 0 disables the preamble")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "tx: ", log.LstdFlags)

	payload, err := loadPayload(*payloadHex, *inPath)
	if err != nil {
		logger.Fatalf("loading payload: %v", err)
	}

	ws, err := phy.Init(phy.Params{SF: *sf, BW: phy.Bandwidth(*bw), CR: *cr, OSR: *osr})
	if err != nil {
		logger.Fatalf("phy.Init: %v", err)
	}

	symbols := make([]uint16, len(payload)*2*3+64)
	symbols, err = ws.Encode(payload, symbols)
	if err != nil {
		logger.Fatalf("encode: %v", err)
	}

	var preamble *phy.Preamble
	if *preambleUp > 0 {
		preamble = &phy.Preamble{Up: *preambleUp, Down: 2}
	}

	iqCap := (len(symbols) + *preambleUp + 2) * ws.Params().N() * ws.Params().OSR
	iq := make([]complex64, iqCap)
	n, err := ws.Modulate(symbols, iq, preamble)
	if err != nil {
		logger.Fatalf("modulate: %v", err)
	}
	iq = iq[:n]

	out, err := openOutput(*outPath, *toStdout)
	if err != nil {
		logger.Fatalf("opening output: %v", err)
	}
	defer out.Close()

	if err := writeIQ(out, iq); err != nil {
		logger.Fatalf("writing IQ samples: %v", err)
	}

	logger.Printf("wrote %d IQ samples (%d symbols) for %d payload bytes", len(iq), len(symbols), len(payload))
}

func loadPayload(payloadHex, inPath string) ([]byte, error) {
	if inPath != "" {
		return os.ReadFile(inPath)
	}
	if payloadHex == "" {
		return nil, fmt.Errorf("one of --payload or --in is required")
	}
	return hex.DecodeString(payloadHex)
}

func openOutput(path string, forceStdout bool) (io.WriteCloser, error) {
	if path == "" || forceStdout {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeIQ(w io.Writer, iq []complex64) error {
	bw := bufio.NewWriter(w)
	var buf [8]byte
	for _, s := range iq {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(imag(s)))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
