package phy

import "math"

// detection is the result of dechirping and FFT-analyzing one symbol
// window. Both the payload decode loop and the offset estimator build on
// this single pure function so their peak-finding logic never diverges.
type detection struct {
	idx       int       // integer FFT bin of the peak, in [0, N)
	findex    float64   // fractional refinement, in [-0.5, 0.5]
	peakBin   complex64 // complex FFT value at idx, for phase comparisons
	subPhase  int       // which of the osr decimation phases won
	peakPower float64   // |X[idx]|^2
	avgPower  float64   // mean |X[k]|^2 over all bins, for SNR-style checks
}

// detectSymbol dechirps window (length N*osr) against the reference
// downchirp, and for each of the osr possible decimation phases runs an
// N-point FFT, keeping the phase whose peak bin carries the most power.
func (ws *Workspace) detectSymbol(window []complex64) detection {
	n, osr := ws.n, ws.osr

	for i := 0; i < n*osr; i++ {
		ws.dechirpBuf[i] = window[i] * ws.refDownchirp[i]
	}
	if ws.hann != nil {
		for i, w := range ws.hann {
			ws.dechirpBuf[i] *= complex64(complex(w, 0))
		}
	}

	best := detection{idx: -1}
	for t := 0; t < osr; t++ {
		for i := 0; i < n; i++ {
			ws.subBuf[i] = ws.dechirpBuf[i*osr+t]
		}
		if err := ws.plan.Execute(ws.freqBuf, ws.subBuf); err != nil {
			// The plan was sized for exactly this buffer at Init; a
			// mismatch here is a programming error, not a runtime one.
			panic(err)
		}

		idx, peak, avg := argmaxPower(ws.freqBuf)
		if best.idx == -1 || peak > best.peakPower {
			best = detection{
				idx:       idx,
				findex:    refineBin(ws.freqBuf, idx, n),
				peakBin:   ws.freqBuf[idx],
				subPhase:  t,
				peakPower: peak,
				avgPower:  avg,
			}
		}
	}
	return best
}

// argmaxPower returns the index of the largest |X[k]|^2 bin, that power,
// and the mean power across all bins.
func argmaxPower(freq []complex64) (idx int, peak, avg float64) {
	var sum float64
	for k, x := range freq {
		p := float64(real(x))*float64(real(x)) + float64(imag(x))*float64(imag(x))
		sum += p
		if p > peak {
			peak = p
			idx = k
		}
	}
	n := len(freq)
	if n > 0 {
		avg = sum / float64(n)
	}
	return idx, peak, avg
}

// refineBin fits a parabola through the power at idx and its two circular
// neighbors and returns the fractional offset of the true peak from idx,
// clipped to [-0.5, 0.5].
func refineBin(freq []complex64, idx, n int) float64 {
	power := func(k int) float64 {
		x := freq[((k%n)+n)%n]
		return float64(real(x))*float64(real(x)) + float64(imag(x))*float64(imag(x))
	}
	pPrev := power(idx - 1)
	pCur := power(idx)
	pNext := power(idx + 1)

	denom := pPrev - 2*pCur + pNext
	if denom == 0 {
		return 0
	}
	d := 0.5 * (pPrev - pNext) / denom
	if d > 0.5 {
		d = 0.5
	}
	if d < -0.5 {
		d = -0.5
	}
	if math.IsNaN(d) {
		return 0
	}
	return d
}
