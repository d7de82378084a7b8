// Package phy implements the LoRa physical-layer modem: the chirp
// modulator/demodulator, the CFO/timing offset estimator and compensator,
// and the whitening/Hamming/interleave codec that links them to byte
// payloads.
package phy

import (
	"fmt"
)

// Bandwidth is a bandwidth tag used only to scale the chirp slope.
type Bandwidth int

const (
	BW125 Bandwidth = 125000
	BW250 Bandwidth = 250000
	BW500 Bandwidth = 500000
)

func (b Bandwidth) valid() bool {
	switch b {
	case BW125, BW250, BW500:
		return true
	}
	return false
}

// scale returns the chirp-slope scale factor for this bandwidth, normalized
// so BW125 is unity.
func (b Bandwidth) scale() float64 {
	return float64(b) / float64(BW125)
}

// Window selects the optional analysis window applied before detection.
type Window int

const (
	WindowNone Window = iota
	WindowHann
)

// Params is the immutable configuration of a Workspace, copied at Init
// time.
type Params struct {
	SF     int       // spreading factor, 7..12
	BW     Bandwidth // bandwidth tag
	CR     int       // coding rate 1..4; redundancy rdd = CR
	OSR    int       // oversampling ratio, >= 1
	Window Window
	Whiten bool // XOR payload bytes with an LFSR-generated whitening stream
}

// Validate checks Params against the ranges the spec requires.
func (p Params) Validate() error {
	if p.SF < 7 || p.SF > 12 {
		return fmt.Errorf("%w: sf=%d out of range [7,12]", ErrInvalidArgument, p.SF)
	}
	if !p.BW.valid() {
		return fmt.Errorf("%w: bw=%d is not one of 125000/250000/500000", ErrInvalidArgument, p.BW)
	}
	if p.CR < 1 || p.CR > 4 {
		return fmt.Errorf("%w: cr=%d out of range [1,4]", ErrInvalidArgument, p.CR)
	}
	if p.OSR < 1 {
		return fmt.Errorf("%w: osr=%d must be >= 1", ErrInvalidArgument, p.OSR)
	}
	switch p.Window {
	case WindowNone, WindowHann:
	default:
		return fmt.Errorf("%w: unknown window %d", ErrInvalidArgument, p.Window)
	}
	return nil
}

// N returns 1<<sf, the base (non-oversampled) symbol alphabet size.
func (p Params) N() int { return 1 << p.SF }

// Rdd returns the Hamming parity width for this coding rate (rdd = cr).
func (p Params) Rdd() int { return p.CR }
