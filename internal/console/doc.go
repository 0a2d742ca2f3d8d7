// Package console executes commands requested by authenticated subscribers.
//
// The RCON executor forwards to the upstream game server; the log executor is
// the fallback when no upstream is configured.
package console
