package relay

import "errors"

var (
	// ErrHubFull means the connection limit was reached; the connection is closed.
	ErrHubFull = errors.New("connection limit reached")

	// ErrHubBusy means the hub actor did not acknowledge a command in time.
	ErrHubBusy = errors.New("hub command timed out")
)
