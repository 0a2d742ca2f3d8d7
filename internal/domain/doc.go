// Package domain holds the event model, the shared error sentinels and the
// console executor port.
//
// Events enter via the ingest API, flow through the relay, and leave as log
// lines and WebSocket envelopes.
package domain
