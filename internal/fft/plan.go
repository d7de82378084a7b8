// Package fft wraps gonum's complex FFT in a caller-owned, re-entrant plan
// so the PHY layer can satisfy the no-allocation-after-init contract.
package fft

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Plan is a forward or inverse radix-2 transform of a fixed size M.
// Creating a plan precomputes gonum's twiddle factors once; Execute never
// allocates. Plans are re-entrant across goroutines but a single plan must
// not be driven concurrently, since Execute reuses an internal scratch
// buffer.
type Plan struct {
	m       int
	inverse bool
	cf      *fourier.CmplxFFT
	scratch []complex128
}

// NewPlan creates a plan for transforming M complex samples. M must be a
// power of two.
func NewPlan(m int, inverse bool) (*Plan, error) {
	if m <= 0 || m&(m-1) != 0 {
		return nil, fmt.Errorf("fft: size %d is not a power of two", m)
	}
	return &Plan{
		m:       m,
		inverse: inverse,
		cf:      fourier.NewCmplxFFT(m),
		scratch: make([]complex128, m),
	}, nil
}

// M returns the transform size this plan was built for.
func (p *Plan) M() int { return p.m }

// Execute reads src (length M) and writes dst (length M). src and dst may
// alias. Forward plans compute the unnormalized DFT; inverse plans divide
// by M so that Execute(inverse)(Execute(forward)(x)) == x to floating-point
// tolerance.
func (p *Plan) Execute(dst, src []complex64) error {
	if len(src) != p.m || len(dst) != p.m {
		return fmt.Errorf("fft: buffer length %d/%d does not match plan size %d", len(src), len(dst), p.m)
	}
	for i, v := range src {
		p.scratch[i] = complex(float64(real(v)), float64(imag(v)))
	}

	var out []complex128
	if p.inverse {
		out = p.cf.Sequence(p.scratch, p.scratch)
		scale := 1.0 / float64(p.m)
		for i := range out {
			out[i] *= complex(scale, 0)
		}
	} else {
		out = p.cf.Coefficients(p.scratch, p.scratch)
	}

	for i, v := range out {
		dst[i] = complex64(v)
	}
	return nil
}
