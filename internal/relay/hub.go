package relay

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/LzdqesjG/BungeeLog/internal/codec"
	"github.com/LzdqesjG/BungeeLog/internal/metrics"
)

// Close codes sent to clients that never make it past authentication.
const (
	CloseAuthTimeout = 4001
	CloseAuthFailed  = 4002
)

const (
	authDeadline     = 5 * time.Second
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
	maxConnections   = 128
	commandRateEvery = time.Second
	commandRateBurst = 5
)

// connState is the per-connection authentication state. A connection never
// returns to stateUnauthenticated.
type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateClosed
)

type client struct {
	id          uuid.UUID
	writer      *clientWriter
	state       connState
	authTimer   clockwork.Timer
	limiter     *rate.Limiter
	connectedAt time.Time
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type inboundCmd struct {
	baseHubCmd
	connection *websocket.Conn
	payload    []byte
}

type broadcastCmd struct {
	baseHubCmd
	data []byte
}

type sendToCmd struct {
	baseHubCmd
	connection *websocket.Conn
	data       []byte
}

type authTimeoutCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type setSecretCmd struct {
	baseHubCmd
	secret string
}

type countsCmd struct {
	baseHubCmd
	replyChannel chan Counts
}

type stopCmd struct {
	baseHubCmd
}

// Counts is a snapshot of the hub's connection tally for status reporting.
type Counts struct {
	Tracked       int
	Authenticated int
}

// CommandHandler receives the raw payload of a frame from an authenticated
// connection together with a reply function for that connection. Called on a
// separate goroutine so command execution never blocks the hub.
type CommandHandler func(reply func(data []byte), payload []byte)

// Hub tracks live WebSocket connections and their authentication state.
// Single goroutine plus command channel; no locks on the connection map.
type Hub struct {
	cmdCh     chan hubCmd
	clock     clockwork.Clock
	secret    string
	onCommand CommandHandler
	clients   map[*websocket.Conn]*client
	done      chan struct{}
	stopOnce  sync.Once
}

// NewHub starts the hub actor. secret is the shared password clients must
// present as their first frame; onCommand handles post-auth frames.
func NewHub(secret string, onCommand CommandHandler, clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:     make(chan hubCmd, 256),
		clock:     clock,
		secret:    secret,
		onCommand: onCommand,
		clients:   make(map[*websocket.Conn]*client),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a freshly upgraded connection in the unauthenticated state
// and arms its auth deadline timer.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.post(registerCmd{connection: conn, errorChannel: errCh})

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return ErrHubBusy
	}
}

// Unregister removes a connection. Removing an unknown connection is a no-op.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.post(unregisterCmd{connection: conn})
}

// Inbound routes one client frame: an authentication attempt while the
// connection is unauthenticated, a command request afterwards.
func (h *Hub) Inbound(conn *websocket.Conn, payload []byte) {
	h.post(inboundCmd{connection: conn, payload: payload})
}

// Broadcast fans data out to every authenticated connection. Best-effort per
// connection; a full send buffer evicts that client without affecting others.
func (h *Hub) Broadcast(data []byte) {
	h.post(broadcastCmd{data: data})
	metrics.BroadcastsSent.Inc()
}

// SendTo queues data for a single connection if it is still tracked.
func (h *Hub) SendTo(conn *websocket.Conn, data []byte) {
	h.post(sendToCmd{connection: conn, data: data})
}

// SetSecret swaps the shared password on reload.
func (h *Hub) SetSecret(secret string) {
	h.post(setSecretCmd{secret: secret})
}

// Counts reports tracked and authenticated connection totals.
func (h *Hub) Counts() Counts {
	replyCh := make(chan Counts, 1)
	h.post(countsCmd{replyChannel: replyCh})

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case counts := <-replyCh:
		return counts
	case <-timer.Chan():
		slog.Warn("Hub counts query timed out", "timeout", commandTimeout)
		return Counts{}
	}
}

// Stop closes every tracked connection and terminates the actor. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.post(stopCmd{})

		timer := h.clock.NewTimer(stopTimeout)
		defer timer.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped")
		case <-timer.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

// post enqueues a command unless the actor already exited.
func (h *Hub) post(cmd hubCmd) {
	select {
	case <-h.done:
	case h.cmdCh <- cmd:
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case inboundCmd:
			h.handleInbound(c)
		case broadcastCmd:
			h.handleBroadcast(c.data)
		case sendToCmd:
			if cl, ok := h.clients[c.connection]; ok {
				h.deliver(c.connection, cl, c.data)
			}
		case authTimeoutCmd:
			h.handleAuthTimeout(c.connection)
		case setSecretCmd:
			h.secret = c.secret
		case countsCmd:
			c.replyChannel <- h.counts()
		case stopCmd:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= maxConnections {
		slog.Warn("Rejecting client: connection limit reached", "limit", maxConnections)
		c.connection.Close()
		c.errorChannel <- ErrHubFull
		return
	}

	conn := c.connection
	cl := &client{
		id:          uuid.New(),
		writer:      newClientWriter(conn, h.clock),
		state:       stateUnauthenticated,
		limiter:     rate.NewLimiter(rate.Every(commandRateEvery), commandRateBurst),
		connectedAt: h.clock.Now(),
	}
	cl.authTimer = h.clock.AfterFunc(authDeadline, func() {
		h.post(authTimeoutCmd{connection: conn})
	})
	h.clients[conn] = cl

	metrics.HubConnections.Set(float64(len(h.clients)))
	slog.Info("Client connected", "client_id", cl.id.String(), "remote_addr", conn.RemoteAddr().String())
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cl, ok := h.clients[conn]
	if !ok {
		return
	}

	cl.authTimer.Stop()
	if cl.state == stateAuthenticated {
		metrics.HubAuthenticatedConnections.Dec()
	}
	cl.state = stateClosed
	cl.writer.stop()
	delete(h.clients, conn)

	metrics.HubConnections.Set(float64(len(h.clients)))
	slog.Info("Client disconnected",
		"client_id", cl.id.String(),
		"connected_for", h.clock.Since(cl.connectedAt).String(),
		"remaining", len(h.clients))
}

func (h *Hub) handleInbound(c inboundCmd) {
	cl, ok := h.clients[c.connection]
	if !ok || cl.state == stateClosed {
		return
	}

	if cl.state == stateUnauthenticated {
		h.handleAuthAttempt(c.connection, cl, c.payload)
		return
	}

	if !cl.limiter.Allow() {
		slog.Warn("Command rate limit exceeded", "client_id", cl.id.String())
		h.deliver(c.connection, cl, codec.CommandError("rate limit exceeded"))
		return
	}

	conn := c.connection
	reply := func(data []byte) { h.SendTo(conn, data) }
	go h.onCommand(reply, c.payload)
}

// handleAuthAttempt consumes the single authentication attempt a connection
// gets: exact match of the trimmed payload against the shared secret.
func (h *Hub) handleAuthAttempt(conn *websocket.Conn, cl *client, payload []byte) {
	cl.authTimer.Stop()

	if strings.TrimSpace(string(payload)) == h.secret && h.secret != "" {
		cl.state = stateAuthenticated
		h.deliver(conn, cl, codec.AuthResult(true))
		h.deliver(conn, cl, codec.Lifecycle("started"))
		metrics.HubAuthenticatedConnections.Inc()
		metrics.AuthOutcomes.WithLabelValues("success").Inc()
		slog.Info("Client authenticated", "client_id", cl.id.String())
		return
	}

	cl.state = stateClosed
	select {
	case cl.writer.sendChannel <- codec.AuthResult(false):
	default:
	}
	cl.writer.closeWith(CloseAuthFailed, "invalid password")
	delete(h.clients, conn)
	metrics.HubConnections.Set(float64(len(h.clients)))
	metrics.AuthOutcomes.WithLabelValues("failed").Inc()
	slog.Warn("Client failed authentication", "client_id", cl.id.String())
}

// handleAuthTimeout fires when the deadline timer elapses. Stale timers for
// connections that already authenticated or closed are ignored.
func (h *Hub) handleAuthTimeout(conn *websocket.Conn) {
	cl, ok := h.clients[conn]
	if !ok || cl.state != stateUnauthenticated {
		return
	}

	cl.state = stateClosed
	cl.writer.closeWith(CloseAuthTimeout, "authentication timeout")
	delete(h.clients, conn)
	metrics.HubConnections.Set(float64(len(h.clients)))
	metrics.AuthOutcomes.WithLabelValues("timeout").Inc()
	slog.Warn("Client authentication timed out", "client_id", cl.id.String())
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cl := range h.clients {
		if cl.state != stateAuthenticated {
			continue
		}
		select {
		case cl.writer.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.SlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

// deliver enqueues for one client, evicting it if its buffer is full.
func (h *Hub) deliver(conn *websocket.Conn, cl *client, data []byte) {
	select {
	case cl.writer.sendChannel <- data:
	default:
		slog.Warn("Disconnecting slow client", "client_id", cl.id.String())
		metrics.SlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connections", len(h.clients))

	for conn, cl := range h.clients {
		cl.authTimer.Stop()
		if cl.state == stateAuthenticated {
			select {
			case cl.writer.sendChannel <- codec.Lifecycle("stopped"):
			default:
			}
			metrics.HubAuthenticatedConnections.Dec()
		}
		cl.state = stateClosed
		cl.writer.closeWith(websocket.CloseNormalClosure, "server shutting down")
		delete(h.clients, conn)
	}
	metrics.HubConnections.Set(0)
}

func (h *Hub) counts() Counts {
	counts := Counts{Tracked: len(h.clients)}
	for _, cl := range h.clients {
		if cl.state == stateAuthenticated {
			counts.Authenticated++
		}
	}
	return counts
}
