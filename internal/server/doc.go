// Package server implements the admin and ingest HTTP API using Echo.
//
// The host proxy POSTs lifecycle events to /api/events; operators use
// /api/status, /api/reload, /api/test and /api/broadcast. Health and
// Prometheus metrics are unauthenticated.
package server
