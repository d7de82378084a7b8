package lorawan

import "errors"

var (
	// ErrShapeMismatch marks a decoded buffer too short to hold a legal
	// frame, or a FOpts length field that overruns it.
	ErrShapeMismatch = errors.New("lorawan: shape mismatch")
	// ErrMICMismatch marks a frame that decoded but failed its MIC check.
	// It is always reported distinctly from ErrShapeMismatch.
	ErrMICMismatch = errors.New("lorawan: MIC mismatch")
	// ErrReplayed marks a frame whose counter repeats or regresses against
	// the session store.
	ErrReplayed = errors.New("lorawan: frame counter replayed")
)
