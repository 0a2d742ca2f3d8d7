package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/LzdqesjG/BungeeLog/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	messageBufferSize = 16
)

// clientWriter serializes all writes to one WebSocket connection. The hub
// never writes directly; it enqueues on sendChannel or requests a close.
type clientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	closeChan   chan closeRequest
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

type closeRequest struct {
	code   int
	reason string
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		closeChan:   make(chan closeRequest, 1),
		doneChannel: make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendChannel:
			if !ok {
				return
			}
			if err := cw.write(msg); err != nil {
				return
			}
		case req := <-cw.closeChan:
			cw.drainAndClose(req)
			return
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) write(msg []byte) error {
	start := cw.clock.Now()
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
	if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
		return err
	}
	metrics.MessageSendDuration.Observe(cw.clock.Since(start).Seconds())
	return nil
}

// drainAndClose flushes whatever is still queued, then sends a close frame
// with the requested code and releases the connection. Pending acks (auth
// failure, lifecycle notifications) reach the peer before the close frame.
func (cw *clientWriter) drainAndClose(req closeRequest) {
	for {
		select {
		case msg := <-cw.sendChannel:
			if err := cw.write(msg); err != nil {
				cw.connection.Close()
				return
			}
		default:
			closeMsg := websocket.FormatCloseMessage(req.code, req.reason)
			_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
			_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
			cw.connection.Close()
			return
		}
	}
}

// closeWith asks the writer goroutine to flush and close with a close frame.
// Subsequent calls are no-ops.
func (cw *clientWriter) closeWith(code int, reason string) {
	select {
	case cw.closeChan <- closeRequest{code: code, reason: reason}:
	default:
	}
}

// stop tears the connection down immediately without a close frame.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}
