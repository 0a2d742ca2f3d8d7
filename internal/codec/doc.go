// Package codec translates events into their two output forms: the formatted
// audit log line and the JSON envelope pushed to WebSocket subscribers.
//
// Pure functions only — no I/O, no state. Envelope field order matches the
// wire protocol for readability; clients must not rely on it.
package codec
