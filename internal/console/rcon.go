package console

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorcon/rcon"
	"github.com/sony/gobreaker"
)

const (
	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second
	maxCommandLen           = 4096
)

// RconExecutor runs console commands over a shared RCON connection with lazy
// dialing and one reconnect attempt on a stale connection. A circuit breaker
// makes a dead upstream fail fast instead of stalling command handlers.
type RconExecutor struct {
	addr     string
	password string
	breaker  *gobreaker.CircuitBreaker

	mu   sync.Mutex
	conn *rcon.Conn
}

// NewRconExecutor prepares the executor; no connection is made until the
// first command.
func NewRconExecutor(addr, password string) *RconExecutor {
	settings := gobreaker.Settings{
		Name: "rcon",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		Timeout: breakerOpenDuration,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("RCON circuit breaker state change", "from", from.String(), "to", to.String())
		},
	}

	return &RconExecutor{
		addr:     addr,
		password: password,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs one command upstream and returns its response.
func (e *RconExecutor) Execute(ctx context.Context, command string) (string, error) {
	type result struct {
		resp string
		err  error
	}

	resultCh := make(chan result, 1)
	go func() {
		resp, err := e.breaker.Execute(func() (any, error) {
			return e.execute(command)
		})
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{resp: resp.(string)}
	}()

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("rcon execute: %w", ctx.Err())
	}
}

// execute holds the connection lock for the whole exchange; the RCON protocol
// is strictly request/response on one connection.
func (e *RconExecutor) execute(command string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := e.getConn()
	if err != nil {
		return "", fmt.Errorf("rcon connect: %w", err)
	}

	resp, err := conn.Execute(command)
	if err != nil {
		// Connection may be stale; close and retry once.
		e.dropConn()

		conn, err = e.getConn()
		if err != nil {
			return "", fmt.Errorf("rcon reconnect: %w", err)
		}
		resp, err = conn.Execute(command)
		if err != nil {
			e.dropConn()
			return "", fmt.Errorf("rcon execute after reconnect: %w", err)
		}
	}
	return resp, nil
}

func (e *RconExecutor) getConn() (*rcon.Conn, error) {
	if e.conn != nil {
		return e.conn, nil
	}
	conn, err := rcon.Dial(e.addr, e.password)
	if err != nil {
		return nil, err
	}
	e.conn = conn
	return conn, nil
}

func (e *RconExecutor) dropConn() {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

// Close releases the upstream connection.
func (e *RconExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
