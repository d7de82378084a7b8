// Command vectorgen produces cross-check vector files for a chosen PHY
// parameter set: a payload round-tripped through encode/modulate/demodulate/
// decode with every intermediate stage dumped to disk, plus two fixture
// files exercising the Hamming codec and the encoder/modulator
// independently of the chosen sf/bw/cr.
package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/lora-phy/modem/internal/correction"
	"github.com/lora-phy/modem/internal/phy"
)

func main() {
	var (
		sf         = flag.Int("sf", 7, "spreading factor, 7..12")
		bw         = flag.Int("bw", 125000, "bandwidth in Hz: 125000, 250000, or 500000")
		cr         = flag.Int("cr", 4, "coding rate, 1..4")
		osr        = flag.Int("osr", 1, "oversampling ratio")
		window     = flag.String("window", "none", "detector window: none or hann")
		numBytes   = flag.Int("bytes", 16, "random payload length in bytes")
		seed       = flag.Int64("seed", 1, "PRNG seed for the random payload")
		cfoBins    = flag.Float64("cfo-bins", 0, "CFO to inject into the IQ stream, in bins")
		timeOffset = flag.Float64("time-offset", 0, "timing offset to inject into the IQ stream, in base-rate samples")
		outDir     = flag.String("out", "vectors", "output directory for the vector files")
	)
	flag.Parse()

	if err := run(*sf, *bw, *cr, *osr, *window, *numBytes, *seed, *cfoBins, *timeOffset, *outDir); err != nil {
		fmt.Fprintln(os.Stderr, "vectorgen:", err)
		os.Exit(1)
	}
}

func run(sf, bw, cr, osr int, window string, numBytes int, seed int64, cfoBins, timeOffset float64, outDir string) error {
	params := phy.Params{SF: sf, BW: phy.Bandwidth(bw), CR: cr, OSR: osr}
	switch window {
	case "hann":
		params.Window = phy.WindowHann
	case "none", "":
		params.Window = phy.WindowNone
	default:
		return fmt.Errorf("unknown window %q", window)
	}

	ws, err := phy.Init(params)
	if err != nil {
		return fmt.Errorf("phy.Init: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	payload := make([]byte, numBytes)
	rand.New(rand.NewSource(seed)).Read(payload)

	symbols, preInterleave, err := ws.EncodeTrace(payload)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	step := ws.Params().N() * ws.Params().OSR
	iq := make([]complex64, (len(symbols)+2)*step)
	n, err := ws.Modulate(symbols, iq, nil)
	if err != nil {
		return fmt.Errorf("modulate: %w", err)
	}
	iq = iq[:n]

	if cfoBins != 0 {
		injectCFO(iq, cfoBins, ws.Params().N())
	}
	if timeOffset != 0 {
		injectTimeOffset(iq, int(math.Round(timeOffset*float64(osr))))
	}

	demodSymbols := make([]uint16, len(symbols))
	demodSymbols, err = ws.Demodulate(iq, demodSymbols, nil)
	if err != nil {
		return fmt.Errorf("demodulate: %w", err)
	}

	decoded, deinterleave, err := ws.DecodeTrace(demodSymbols)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	manifest := manifestBuilder{sf: sf, seed: seed, bytes: numBytes, osr: osr, bw: bw}

	if err := manifest.writeBytes(outDir, "payload.bin", payload); err != nil {
		return err
	}
	if err := manifest.writeBytes(outDir, "decoded.bin", decoded); err != nil {
		return err
	}
	if err := manifest.writeCSVInts(outDir, "pre_interleave.csv", preInterleave); err != nil {
		return err
	}
	if err := manifest.writeCSVInts(outDir, "deinterleave.csv", deinterleave); err != nil {
		return err
	}
	if err := manifest.writeCSVUint16s(outDir, "post_interleave.csv", symbols); err != nil {
		return err
	}
	if err := manifest.writeCSVUint16s(outDir, "demod_symbols.csv", demodSymbols); err != nil {
		return err
	}
	if err := manifest.writeIQCSV(outDir, "iq_samples.csv", iq); err != nil {
		return err
	}

	if err := writeHammingTests(filepath.Join(outDir, "hamming_tests.bin")); err != nil {
		return fmt.Errorf("hamming_tests.bin: %w", err)
	}
	if err := writeModulationTests(filepath.Join(outDir, "modulation_tests.bin")); err != nil {
		return fmt.Errorf("modulation_tests.bin: %w", err)
	}

	if err := manifest.write(outDir); err != nil {
		return err
	}

	m := ws.GetLastMetrics()
	fmt.Printf("vectorgen: %s payload, %d symbols, %s IQ samples, crc_ok=%v, frame_errors=%d\n",
		humanize.Bytes(uint64(numBytes)), len(symbols), humanize.Comma(int64(len(iq))), m.CRCOK, m.FrameErrors)
	return nil
}

// injectCFO rotates samples by a constant per-sample phase increment
// corresponding to cfoBins bins of carrier frequency offset, the same
// convention internal/phy's offset estimator expects to recover.
func injectCFO(samples []complex64, cfoBins float64, n int) {
	rate := 2 * math.Pi * cfoBins / float64(n)
	for i, s := range samples {
		theta := rate * float64(i)
		c, sn := math.Cos(theta), math.Sin(theta)
		re, im := float64(real(s)), float64(imag(s))
		samples[i] = complex64(complex(re*c-im*sn, re*sn+im*c))
	}
}

// injectTimeOffset shifts samples by a whole number of sample positions
// (oversampled positions when osr > 1; the caller scales base-rate offsets
// by osr), zero-filling the vacated span, mirroring the sign convention of
// Workspace.CompensateOffsets's shift step.
func injectTimeOffset(samples []complex64, shift int) {
	n := len(samples)
	if shift == 0 || n == 0 {
		return
	}
	shifted := make([]complex64, n)
	for i := range shifted {
		src := i - shift
		if src >= 0 && src < n {
			shifted[i] = samples[src]
		}
	}
	copy(samples, shifted)
}

type manifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

type manifestBuilder struct {
	sf, bytes, osr, bw int
	seed               int64
	files              []manifestFile
}

// writeRaw writes name verbatim, then a base64-wrapped .b64 sibling, and
// records the .b64 file's sha256 in the manifest per spec.md's vector
// file format.
func (m *manifestBuilder) writeRaw(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	b64Name := name + ".b64"
	b64 := wrapBase64(data, 76)
	if err := os.WriteFile(filepath.Join(dir, b64Name), b64, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", b64Name, err)
	}
	sum := sha256.Sum256(b64)
	m.files = append(m.files, manifestFile{Name: b64Name, SHA256: fmt.Sprintf("%x", sum)})
	return nil
}

func (m *manifestBuilder) writeBytes(dir, name string, data []byte) error {
	return m.writeRaw(dir, name, data)
}

func (m *manifestBuilder) writeCSVInts(dir, name string, values []uint8) error {
	var buf bufioBuilder
	for _, v := range values {
		buf.writeLine(fmt.Sprintf("%d", v))
	}
	return m.writeRaw(dir, name, buf.Bytes())
}

func (m *manifestBuilder) writeCSVUint16s(dir, name string, values []uint16) error {
	var buf bufioBuilder
	for _, v := range values {
		buf.writeLine(fmt.Sprintf("%d", v))
	}
	return m.writeRaw(dir, name, buf.Bytes())
}

func (m *manifestBuilder) writeIQCSV(dir, name string, iq []complex64) error {
	var buf bufioBuilder
	for _, s := range iq {
		buf.writeLine(fmt.Sprintf("%.9g,%.9g", real(s), imag(s)))
	}
	return m.writeRaw(dir, name, buf.Bytes())
}

func (m *manifestBuilder) write(dir string) error {
	doc := struct {
		SF    int            `json:"sf"`
		Seed  int64          `json:"seed"`
		Bytes int            `json:"bytes"`
		OSR   int            `json:"osr"`
		BW    int            `json:"bw"`
		Files []manifestFile `json:"files"`
	}{SF: m.sf, Seed: m.seed, Bytes: m.bytes, OSR: m.osr, BW: m.bw, Files: m.files}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest.json: %w", err)
	}
	return nil
}

// bufioBuilder accumulates CSV lines without per-line allocation churn.
type bufioBuilder struct {
	buf []byte
}

func (b *bufioBuilder) writeLine(s string) {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, '\n')
}

func (b *bufioBuilder) Bytes() []byte { return b.buf }

func wrapBase64(data []byte, width int) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out []byte
	for i := 0; i < len(encoded); i += width {
		end := i + width
		if end > len(encoded) {
			end = len(encoded)
		}
		out = append(out, encoded[i:end]...)
		out = append(out, '\n')
	}
	return out
}

// hammingTestRecord mirrors spec.md's {type, data, enc, dec, err, bad}
// fixed-width record for hamming_tests.bin.
type hammingTestRecord struct {
	Type, Data, Enc, Dec, Err, Bad uint8
}

// writeHammingTests exhaustively exercises correction.EncodeHamming84 /
// DecodeHamming84 over every nibble, every single-bit corruption, and
// every double-bit corruption, independent of the chosen sf/bw/cr.
func writeHammingTests(path string) error {
	var records []hammingTestRecord

	for v := uint8(0); v < 16; v++ {
		enc := correction.EncodeHamming84(v)
		dec, errFlag, bad := correction.DecodeHamming84(enc)
		records = append(records, hammingTestRecord{0, v, enc, dec, b2u8(errFlag), b2u8(bad)})
	}
	for v := uint8(0); v < 16; v++ {
		clean := correction.EncodeHamming84(v)
		for bit := 0; bit < 8; bit++ {
			corrupted := clean ^ (1 << bit)
			dec, errFlag, bad := correction.DecodeHamming84(corrupted)
			records = append(records, hammingTestRecord{1, v, corrupted, dec, b2u8(errFlag), b2u8(bad)})
		}
	}
	for v := uint8(0); v < 16; v++ {
		clean := correction.EncodeHamming84(v)
		for b1 := 0; b1 < 8; b1++ {
			for b2 := b1 + 1; b2 < 8; b2++ {
				corrupted := clean ^ (1 << b1) ^ (1 << b2)
				dec, errFlag, bad := correction.DecodeHamming84(corrupted)
				records = append(records, hammingTestRecord{2, v, corrupted, dec, b2u8(errFlag), b2u8(bad)})
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(records))); err != nil {
		return err
	}
	for _, r := range records {
		if err := binary.Write(w, binary.LittleEndian, r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func b2u8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// modulationGridCase is one {sf, bw, cr} combination exercised by
// writeModulationTests, independent of the vector run's own parameters.
type modulationGridCase struct {
	sf, bw, cr int
}

// writeModulationTests runs a small fixed payload through Encode+Modulate
// at a grid of sf/bw/cr combinations, independent of the
// vector run's chosen parameters, so a cross-check harness can validate
// the modulator against known-good IQ without re-deriving this package's
// own pipeline.
func writeModulationTests(path string) error {
	cases := []modulationGridCase{
		{7, 125000, 1}, {7, 125000, 4}, {9, 125000, 2}, {9, 250000, 4}, {12, 500000, 4},
	}
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(cases))); err != nil {
		return err
	}

	for _, c := range cases {
		ws, err := phy.Init(phy.Params{SF: c.sf, BW: phy.Bandwidth(c.bw), CR: c.cr, OSR: 1})
		if err != nil {
			return fmt.Errorf("case sf=%d bw=%d cr=%d: %w", c.sf, c.bw, c.cr, err)
		}
		symbols := make([]uint16, len(payload)*4+16)
		symbols, err = ws.Encode(payload, symbols)
		if err != nil {
			return fmt.Errorf("case sf=%d bw=%d cr=%d: encode: %w", c.sf, c.bw, c.cr, err)
		}
		step := ws.Params().N()
		iq := make([]complex64, len(symbols)*step)
		n, err := ws.Modulate(symbols, iq, nil)
		if err != nil {
			return fmt.Errorf("case sf=%d bw=%d cr=%d: modulate: %w", c.sf, c.bw, c.cr, err)
		}
		iq = iq[:n]

		if err := binary.Write(w, binary.LittleEndian, uint8(0)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(c.sf)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(c.bw)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(c.cr)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(iq))); err != nil {
			return err
		}
		for _, s := range iq {
			if err := binary.Write(w, binary.LittleEndian, float64(real(s))); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, float64(imag(s))); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
