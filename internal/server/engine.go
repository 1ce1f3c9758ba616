package server

import (
	"context"

	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/hub"
	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/resplite"
	"go.uber.org/zap"
)

// Forwarder hands broadcasts to other server instances
type Forwarder interface {
	Publish(ctx context.Context, v resplite.Value) error
}

// request is everything a handler needs to act on one decoded message
type request struct {
	ctx  context.Context
	peer *Peer
	raw  resplite.Value // the value as parsed, relayed unchanged
	cmd  command.Command
}

type handler interface {
	execute(req *request)
}

type handlerFunc func(req *request)

func (f handlerFunc) execute(req *request) {
	f(req)
}

// Engine dispatches decoded commands to their handlers
type Engine struct {
	handlers  map[command.Name]handler // Registry of handlers by canonical command name
	hub       *hub.Hub
	forwarder Forwarder // nil when running standalone
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewEngine creates an engine with the standard handlers registered.
// forwarder and m may be nil
func NewEngine(h *hub.Hub, forwarder Forwarder, m *metrics.Registry, logger *zap.Logger) *Engine {
	e := &Engine{
		handlers:  make(map[command.Name]handler),
		hub:       h,
		forwarder: forwarder,
		metrics:   m,
		logger:    logger,
	}
	e.registerBasicCommands()
	return e
}

// register adds a handler for a command name
func (e *Engine) register(name command.Name, h handler) {
	e.handlers[name] = h
}

// registerBasicCommands fills the registry with the standard commands
func (e *Engine) registerBasicCommands() {
	e.register(command.NameDown, handlerFunc(e.broadcast))
	e.register(command.NameUp, handlerFunc(e.broadcast))

	// INFO is produced by the server; a client sending one is ignored
	e.register(command.NameInfo, handlerFunc(func(req *request) {
		e.logger.Info("unhandled command",
			zap.String("peer", req.peer.ID()),
			zap.String("cmd", string(req.cmd.Name())),
		)
	}))
}

// Execute runs the handler registered for cmd
func (e *Engine) Execute(ctx context.Context, p *Peer, raw resplite.Value, cmd command.Command) {
	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command",
			zap.String("peer", p.ID()),
			zap.String("cmd", string(cmd.Name())),
		)
	}

	if e.metrics != nil {
		e.metrics.Commands.WithLabelValues(string(cmd.Name())).Inc()
	}

	h, ok := e.handlers[cmd.Name()]
	if !ok {
		e.logger.Warn("no handler registered", zap.String("cmd", string(cmd.Name())))
		return
	}

	h.execute(&request{ctx: ctx, peer: p, raw: raw, cmd: cmd})
}

// broadcast republishes the parsed value, not the decoded command, to every other peer
func (e *Engine) broadcast(req *request) {
	if _, err := e.hub.PublishValue(req.raw, req.peer); err != nil {
		e.logger.Error("broadcast failed", zap.String("peer", req.peer.ID()), zap.Error(err))
		return
	}

	if e.forwarder == nil {
		return
	}
	if err := e.forwarder.Publish(req.ctx, req.raw); err != nil {
		e.logger.Warn("relay publish failed", zap.Error(err))
	}
}
