package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/config"
	"github.com/eternalApril/updown/internal/hub"
	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Replies sent to a peer whose message was dropped
const (
	replyInvalidMessage = "Invalid message"
	replyRateLimited    = "Rate limit exceeded"
	replyParseFailed    = "Failed to parse command: "
)

// Server accepts websocket clients, subscribes them to the hub and dispatches their commands
type Server struct {
	cfg      config.ServerConfig
	limit    config.LimitConfig
	hub      *hub.Hub
	engine   *Engine
	metrics  *metrics.Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader
	handler  http.Handler
	http     *http.Server

	mu    sync.Mutex
	peers map[*Peer]struct{}
	wg    sync.WaitGroup
	ctx   context.Context // cancelled on Shutdown, parent of every request context
	stop  context.CancelFunc
}

// New wires the HTTP routes. m may be nil, in which case no metrics endpoint is served
func New(cfg *config.Config, h *hub.Hub, engine *Engine, m *metrics.Registry, logger *zap.Logger) *Server {
	ctx, stop := context.WithCancel(context.Background())

	s := &Server{
		cfg:     cfg.Server,
		limit:   cfg.Limit,
		hub:     h,
		engine:  engine,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// clients may be served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[*Peer]struct{}),
		ctx:   ctx,
		stop:  stop,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.serveWS)
	if m != nil && cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	s.handler = mux

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every peer and waits for them until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stop()
	srv := s.http
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		// hijacked websocket connections are not tracked by http.Server
		err = srv.Shutdown(ctx)
	}

	for _, p := range peers {
		p.closeWith(websocket.CloseGoingAway, "server shutting down", s.cfg.WriteTimeout)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with 400
		s.logger.Warn("upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close() //nolint:errcheck
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.handleConnection(conn)
	}()
}

// handleConnection handles a connection for a single user
func (s *Server) handleConnection(conn *websocket.Conn) {
	peer := NewPeer(conn, s.cfg.SendQueue, s.newLimiter())
	log := s.logger.With(zap.String("peer", peer.ID()))

	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", conn.RemoteAddr().String()))
	}

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !s.track(peer) {
		peer.Close() //nolint:errcheck
		return
	}
	s.hub.Join(peer)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := peer.writeLoop(s.cfg.WriteTimeout); err != nil {
			log.Debug("write failed", zap.Error(err))
			peer.Close() //nolint:errcheck
		}
	}()

	defer func() {
		s.hub.Leave(peer)
		s.untrack(peer)
		peer.Close() //nolint:errcheck
		<-writerDone

		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected")
		}
	}()

	for {
		kind, data, err := peer.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read message failed", zap.Error(err))
			}
			return
		}

		s.handleMessage(peer, kind, data, log)
	}
}

// handleMessage validates one inbound frame and hands it to the engine.
// Failures are reported to the sender only; the connection stays open
func (s *Server) handleMessage(peer *Peer, kind int, data []byte, log *zap.Logger) {
	if kind != websocket.TextMessage {
		s.reject(metrics.ReasonFrame)
		peer.Deliver(replyInvalidMessage)
		return
	}

	if !peer.Allow() {
		s.reject(metrics.ReasonRateLimit)
		peer.Deliver(replyRateLimited)
		return
	}

	cmd, raw, err := command.Parse(string(data))
	if err != nil {
		if resplite.KindOf(err) == resplite.KindCommand {
			s.reject(metrics.ReasonCommand)
		} else {
			s.reject(metrics.ReasonParse)
		}

		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("rejected message", zap.ByteString("data", data), zap.Error(err))
		}

		peer.Deliver(replyParseFailed + err.Error())
		return
	}

	s.engine.Execute(s.ctx, peer, raw, cmd)
}

func (s *Server) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.limit.MessagesPerSecond <= 0 {
		return nil
	}
	burst := s.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.limit.MessagesPerSecond), burst)
}

// track registers p for Shutdown. It fails once Shutdown has started
func (s *Server) track(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p)
}
