package tempo

import "errors"

var (
	// ErrInvalidParameters reports a malformed Config or an empty waveform.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrInsufficientSignal reports a degenerate onset envelope: silence, or
	// too few frames to measure the slowest allowed tempo.
	ErrInsufficientSignal = errors.New("insufficient signal")

	// ErrNoBeatsFound reports that fewer than two beats could be recovered.
	ErrNoBeatsFound = errors.New("no beats found")
)
