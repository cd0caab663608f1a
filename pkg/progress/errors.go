package progress

import "errors"

var (
	// ErrTemplate reports a template that fails to parse or references
	// fields the renderer does not provide.
	ErrTemplate = errors.New("invalid progress template")
	// ErrInvalidTotal reports a Percentage total that is negative, NaN or infinite.
	ErrInvalidTotal = errors.New("progress total must be a finite number >= 0")
	// ErrInvalidPeriod reports a Timer period that is not positive.
	ErrInvalidPeriod = errors.New("timer period must be > 0")
	// ErrNotStarted reports a Timer update before the first Start.
	ErrNotStarted = errors.New("timer not started")
	// ErrAlreadyRunning reports a Start while the timer loop is still active.
	ErrAlreadyRunning = errors.New("timer already running")
)
