package phy

import (
	"fmt"
	"math"

	"github.com/lora-phy/modem/internal/chirp"
	"github.com/lora-phy/modem/internal/fft"
)

// Workspace owns every buffer a modulate/demodulate call touches. Once Init
// returns, steady-state Modulate and Demodulate calls allocate nothing;
// every scratch buffer below is sized once from Params and reused.
type Workspace struct {
	params Params
	n      int // 1 << sf
	osr    int
	rdd    int

	plan *fft.Plan // N-point FFT used by the detector

	refDownchirp []complex64 // N*osr reference downchirp, phase-fixed, used by the detector

	dechirpBuf []complex64 // N*osr scratch: window * refDownchirp
	subBuf     []complex64 // N scratch: one osr-decimated phase of dechirpBuf
	freqBuf    []complex64 // N scratch: FFT output
	rotScratch []complex64 // N*osr scratch: CFO/timing-compensated symbol window
	hann       []float64   // N*osr window coefficients, nil unless WindowHann

	txPhase float64 // running phase carried across successive Modulate calls

	metrics      Metrics
	bestSubPhase int // t* from the last offset estimate, in oversampled samples
}

// Init validates params and allocates every buffer the Workspace will ever
// need. It is the only operation in this package allowed to allocate
// without bound.
func Init(params Params) (*Workspace, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	n := params.N()
	osr := params.OSR
	m := n * osr

	plan, err := fft.NewPlan(n, false)
	if err != nil {
		return nil, fmt.Errorf("phy: building detector fft plan: %w", err)
	}

	ws := &Workspace{
		params:       params,
		n:            n,
		osr:          osr,
		rdd:          params.Rdd(),
		plan:         plan,
		refDownchirp: make([]complex64, m),
		dechirpBuf:   make([]complex64, m),
		subBuf:       make([]complex64, n),
		freqBuf:      make([]complex64, n),
		rotScratch:   make([]complex64, m),
	}

	downPhase := 0.0
	chirp.Generate(ws.refDownchirp, n, osr, 0, true, 1, &downPhase, params.BW.scale())

	if params.Window == WindowHann {
		ws.hann = hannWindow(m)
	}

	return ws, nil
}

// Reset clears the running modulator phase and the last-call metrics,
// without reallocating any buffer. Call it between unrelated streams that
// share the same Workspace.
func (ws *Workspace) Reset() {
	ws.txPhase = 0
	ws.bestSubPhase = 0
	ws.metrics = Metrics{}
}

// GetLastMetrics returns a copy of the metrics produced by the most recent
// Decode and EstimateOffsets/Demodulate call.
func (ws *Workspace) GetLastMetrics() Metrics {
	return ws.metrics
}

// Params returns the configuration this Workspace was built with.
func (ws *Workspace) Params() Params { return ws.params }

func hannWindow(m int) []float64 {
	w := make([]float64, m)
	if m == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(m-1))
	}
	return w
}
