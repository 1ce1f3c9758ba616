package server

import (
	"io"
	"sync"
	"time"

	"github.com/eternalApril/updown/internal/resplite"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

const (
	// pongWait is how long a peer may stay silent before it is considered gone
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait
	pingPeriod = pongWait * 9 / 10
)

// Peer represents a connected client.
// It wraps a websocket connection; every write goes through a single writer goroutine
type Peer struct {
	id      string
	conn    *websocket.Conn
	send    chan string
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	enc     *resplite.Encoder // owned by the writer goroutine
}

// NewPeer initializes a new client peer from a websocket connection.
// A nil limiter disables rate limiting
func NewPeer(conn *websocket.Conn, queue int, limiter *rate.Limiter) *Peer {
	if queue <= 0 {
		queue = 1
	}
	return &Peer{
		id:      ulid.Make().String(),
		conn:    conn,
		send:    make(chan string, queue),
		done:    make(chan struct{}),
		limiter: limiter,
		enc:     resplite.NewEncoder(io.Discard),
	}
}

// ID returns the unique connection id used in logs
func (p *Peer) ID() string {
	return p.id
}

// Deliver queues a text frame without blocking.
// It returns false if the queue is full or the peer is closed
func (p *Peer) Deliver(payload string) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- payload:
		return true
	default:
		return false
	}
}

// Allow reports whether the peer may send another message now
func (p *Peer) Allow() bool {
	return p.limiter == nil || p.limiter.Allow()
}

// ReadMessage reads the next frame from the client
func (p *Peer) ReadMessage() (int, []byte, error) {
	return p.conn.ReadMessage()
}

// Close terminates the underlying connection. It is safe to call more than once
func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

// closeWith sends a close frame before closing the connection
func (p *Peer) closeWith(code int, text string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, text)
	p.conn.WriteControl(websocket.CloseMessage, msg, deadline(timeout)) //nolint:errcheck
	p.Close()                                                           //nolint:errcheck
}

// writeLoop drains the send queue until the peer is closed
func (p *Peer) writeLoop(writeTimeout time.Duration) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-p.send:
			p.conn.SetWriteDeadline(deadline(writeTimeout)) //nolint:errcheck
			if err := p.writeFrame(payload); err != nil {
				return err
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(deadline(writeTimeout)) //nolint:errcheck
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}

		case <-p.done:
			return nil
		}
	}
}

// writeFrame sends payload as one text frame
func (p *Peer) writeFrame(payload string) error {
	w, err := p.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	p.enc.Reset(w)
	if err := p.enc.WriteRaw(payload); err != nil {
		return err
	}
	if err := p.enc.Flush(); err != nil {
		return err
	}
	return w.Close()
}

// deadline returns the write deadline for d; zero means none
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
