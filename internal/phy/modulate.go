package phy

import (
	"fmt"

	"github.com/lora-phy/modem/internal/chirp"
)

// Preamble describes the optional synchronization preamble Modulate can
// prepend: P_up upchirps (symbol 0) followed by P_down plain downchirps.
type Preamble struct {
	Up   int
	Down int
}

// DefaultPreamble matches the conventional LoRa preamble length used for
// over-the-channel sweeps (P_up=8, P_down=2).
var DefaultPreamble = Preamble{Up: 8, Down: 2}

// Modulate maps each of symbols (each < N) to an N*osr-sample upchirp
// cyclically shifted by the symbol value, optionally preceded by a
// preamble, writing into a caller-owned slice and returning the number of
// samples written.
//
// Modulate does not allocate: it writes entirely into iq[:written] and its
// own scratch buffers.
func (ws *Workspace) Modulate(symbols []uint16, iq []complex64, preamble *Preamble) (int, error) {
	n, osr := ws.n, ws.osr
	step := n * osr

	preLen := 0
	if preamble != nil {
		preLen = (preamble.Up + preamble.Down) * step
	}
	need := preLen + len(symbols)*step
	if len(iq) < need {
		return 0, fmt.Errorf("%w: iq capacity %d < required %d", ErrCapacityTooSmall, len(iq), need)
	}

	pos := 0
	if preamble != nil {
		for i := 0; i < preamble.Up; i++ {
			chirp.Generate(iq[pos:pos+step], n, osr, 0, false, 1, &ws.txPhase, ws.params.BW.scale())
			pos += step
		}
		for i := 0; i < preamble.Down; i++ {
			chirp.Generate(iq[pos:pos+step], n, osr, 0, true, 1, &ws.txPhase, ws.params.BW.scale())
			pos += step
		}
	}

	for _, sym := range symbols {
		if int(sym) >= n {
			return 0, fmt.Errorf("%w: symbol %d >= N=%d", ErrInvalidArgument, sym, n)
		}
		freqOffset := chirp.SymbolFreqOffset(int(sym), n, osr)
		chirp.Generate(iq[pos:pos+step], n, osr, freqOffset, false, 1, &ws.txPhase, ws.params.BW.scale())
		pos += step
	}

	return pos, nil
}
