package phy

import "errors"

// Sentinel errors play the role the original spec's negative error codes
// play: callers distinguish failure kinds with errors.Is, not by matching
// strings.
var (
	// ErrInvalidArgument marks a parameter outside the range Validate allows.
	ErrInvalidArgument = errors.New("phy: invalid argument")
	// ErrCapacityTooSmall marks a caller-supplied buffer too small to hold
	// the result.
	ErrCapacityTooSmall = errors.New("phy: capacity too small")
	// ErrShapeMismatch marks an input whose length doesn't divide evenly
	// into the unit the operation expects (a symbol window, a codeword
	// block, an interleaver block).
	ErrShapeMismatch = errors.New("phy: shape mismatch")
)
