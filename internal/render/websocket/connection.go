package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/fleetpulse/trackmap/pkg/streaming"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	minBackoff   = time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	link   *link // nil while disconnected
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	// Messages sent since the last reset, replayed after a reconnect so the
	// widget shows the same scene.
	scene [][]byte

	onEnvelope func(streaming.Envelope)

	minBackoff time.Duration
	logger     *slog.Logger
}

// link is one dialed *ws.Conn and its loops. writeLoop is the only goroutine
// that writes data frames on conn; writerDone is closed once it has returned.
type link struct {
	conn       *ws.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}
}

func newLink(conn *ws.Conn) *link {
	return &link{conn: conn, stop: make(chan struct{}), writerDone: make(chan struct{})}
}

func (l *link) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func newConnection(logger *slog.Logger, onEnvelope func(streaming.Envelope)) *connection {
	return &connection{
		sendCh:     make(chan []byte, sendChSize),
		ackCh:      make(chan streaming.AckMessage, ackChSize),
		done:       make(chan struct{}),
		onEnvelope: onEnvelope,
		minBackoff: minBackoff,
		logger:     logger,
	}
}

// dial connects to the widget and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = conn.Close()
		return fmt.Errorf("connection closed")
	}
	c.startLocked(conn)
	return nil
}

// startLocked installs conn as the current link and starts its loops.
// c.mu must be held.
func (c *connection) startLocked(conn *ws.Conn) {
	l := newLink(conn)
	c.link = l
	go c.writeLoop(l)
	go c.readLoop(l)
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh onto l.conn. It returns on write error, when the
// link is halted or on shutdown.
func (c *connection) writeLoop(l *link) {
	defer close(l.writerDone)
	for {
		select {
		case <-c.done:
			return
		case <-l.stop:
			return
		case data := <-c.sendCh:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(l)
				return
			}
			if err := l.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(l)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh and every other envelope to onEnvelope.
func (c *connection) readLoop(l *link) {
	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-l.stop:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(l)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed message received", "raw", string(message))
			continue
		}

		if env.Type == streaming.TypeAck {
			var ack streaming.AckMessage
			if err := json.Unmarshal(message, &ack); err != nil {
				continue
			}
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
			continue
		}

		if c.onEnvelope != nil {
			c.onEnvelope(env)
		}
	}
}

// reconnect replaces the failed link with a new connection, using
// exponential backoff, and replays the current scene. Both loops of a link
// may report the same failure; only the first one reconnects.
func (c *connection) reconnect(failed *link) {
	c.mu.Lock()
	if c.closed || c.link != failed {
		c.mu.Unlock()
		return
	}
	c.link = nil
	c.mu.Unlock()

	failed.halt()
	_ = failed.conn.Close()
	<-failed.writerDone

	backoff := c.minBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to map widget", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// queued messages are all part of the scene
		c.mu.Lock()
		c.drainSendCh()
		scene := make([][]byte, len(c.scene))
		copy(scene, c.scene)
		c.mu.Unlock()

		if err := replay(conn, scene); err != nil {
			c.logger.Warn("Failed to replay scene after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.startLocked(conn)
		c.mu.Unlock()

		c.logger.Info("Map widget reconnected", "attempt", attempt, "replayed", len(scene))
		return
	}

	c.logger.Error("Map widget reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// drainSendCh empties sendCh. c.mu must be held.
func (c *connection) drainSendCh() {
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

func replay(conn *ws.Conn, scene [][]byte) error {
	for _, data := range scene {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// connected reports whether a link is up.
func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}
// send records data in the scene and pushes it to the write loop.
// Non-blocking; drops if the channel is full.
func (c *connection) send(data []byte, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reset {
		c.scene = c.scene[:0]
	}
	c.scene = append(c.scene, data)

	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the widget acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data, false)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// sceneLen reports how many messages would be replayed on reconnect.
func (c *connection) sceneLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scene)
}

// close sends a close frame and shuts down all goroutines. The close frame
// is written once the write loop has returned.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l == nil {
		return nil
	}
	l.halt()
	<-l.writerDone
	_ = l.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return l.conn.Close()
}
