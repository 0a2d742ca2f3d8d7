package domain

import "errors"

var (
	// ErrBindFailure means the relay listener could not bind its address.
	// The real-time channel stays disabled for the session; logging is unaffected.
	ErrBindFailure = errors.New("relay listener bind failed")

	// ErrSinkUnavailable means the log file could not be opened; appends are
	// dropped until the next successful rotation.
	ErrSinkUnavailable = errors.New("log sink unavailable")

	// ErrRelayStopped is returned for operations on a stopped relay.
	ErrRelayStopped = errors.New("relay is stopped")
)
