// Package relay implements the real-time broadcast channel and the event
// orchestration around it.
//
// The Hub is an actor: a single goroutine owns the connection map and consumes
// a typed command channel (no mutexes). Each connection gets a writer goroutine
// with a buffered send channel; slow clients are evicted rather than allowed to
// stall fan-out. Authentication is a per-connection state machine driven by the
// first inbound frame and a cancellable deadline timer.
package relay
