// Command rx demodulates and decodes a LoRa IQ stream, read from a file
// or stdin as interleaved little-endian float32 real/imag pairs, and
// writes the recovered payload bytes.
package main

import (
	"bufio"
	"encoding/binary"
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
		sf      = flag.Int("sf", 7, "spreading factor, 7..12")
		bw      = flag.Int("bw", 125000, "bandwidth in Hz: 125000, 250000, or 500000")
		cr      = flag.Int("cr", 4, "coding rate, 1..4")
		osr     = flag.Int("osr", 1, "oversampling ratio")
		inPath  = flag.String("in", "", "path to read IQ samples from (default: stdin)")
		outPath = flag.String("out", "", "path to write decoded payload bytes (default: stdout)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "rx: ", log.LstdFlags)

	ws, err := phy.Init(phy.Params{SF: *sf, BW: phy.Bandwidth(*bw), CR: *cr, OSR: *osr})
	if err != nil {
		logger.Fatalf("phy.Init: %v", err)
	}

	in, err := openInput(*inPath)
	if err != nil {
		logger.Fatalf("opening input: %v", err)
	}
	defer in.Close()

	iq, err := readIQ(in)
	if err != nil {
		logger.Fatalf("reading IQ samples: %v", err)
	}

	step := ws.Params().N() * ws.Params().OSR
	if len(iq)%step != 0 {
		logger.Fatalf("sample count %d is not a multiple of N*osr=%d", len(iq), step)
	}

	symbols := make([]uint16, len(iq)/step)
	symbols, err = ws.Demodulate(iq, symbols, nil)
	if err != nil {
		logger.Fatalf("demodulate: %v", err)
	}

	payload := make([]byte, len(symbols)*2+8)
	payload, err = ws.Decode(symbols, payload)
	if err != nil {
		logger.Fatalf("decode: %v", err)
	}

	m := ws.GetLastMetrics()
	logger.Printf("decoded %d bytes, crc_ok=%v, frame_errors=%d, cfo=%v, time_offset=%v",
		len(payload), m.CRCOK, m.FrameErrors, m.CFO, m.TimeOffset)

	out, err := openOutput(*outPath)
	if err != nil {
		logger.Fatalf("opening output: %v", err)
	}
	defer out.Close()
	if _, err := out.Write(payload); err != nil {
		logger.Fatalf("writing payload: %v", err)
	}

	if !m.CRCOK {
		os.Exit(1)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return nopCloser{os.Stdin}, nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error { return nil }

func readIQ(r io.Reader) ([]complex64, error) {
	br := bufio.NewReader(r)
	var samples []complex64
	var buf [8]byte
	for {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("truncated IQ sample pair")
			}
			return nil, err
		}
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		samples = append(samples, complex(re, im))
	}
	return samples, nil
}
