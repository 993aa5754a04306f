// Package router serves live components: an initial HTTP render followed by
// a per-connection event loop over WebSocket.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabrielmiguelok/applyform/pkg/core"
	"github.com/gabrielmiguelok/applyform/pkg/limits"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/pool"
	"github.com/gabrielmiguelok/applyform/pkg/protocol"
	"github.com/gabrielmiguelok/applyform/pkg/transport"
)

// Common router errors.
var (
	ErrNilRenderer = errors.New("component returned nil renderer")
	ErrNotJoined   = errors.New("event before join")
)

// Middleware is a function that wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// ErrorHandler handles errors during the initial HTTP render.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Layout wraps a component's markup into a full document for the initial
// HTTP render. Live updates only carry the component markup.
type Layout func(content core.Renderer) core.Renderer

// LiveRoute defines a route that renders a live component.
type LiveRoute struct {
	// Path is the ServeMux pattern.
	Path string

	// Component creates a component per request and per connection.
	Component core.Factory

	// Layout wraps the initial HTTP render.
	Layout Layout

	// Middleware are route-specific middleware.
	Middleware []Middleware
}

// RouteOption configures a LiveRoute.
type RouteOption func(*LiveRoute)

// WithLayout sets the document layout.
func WithLayout(layout Layout) RouteOption {
	return func(r *LiveRoute) {
		r.Layout = layout
	}
}

// WithRouteMiddleware adds middleware to the route.
func WithRouteMiddleware(mw ...Middleware) RouteOption {
	return func(r *LiveRoute) {
		r.Middleware = append(r.Middleware, mw...)
	}
}

// Router handles HTTP routing for live components.
type Router struct {
	mux          *http.ServeMux
	middleware   []Middleware
	errorHandler ErrorHandler
	sessions     *SessionManager
	conns        *limits.ConnectionLimiter
	transport    transport.Config
	timeouts     core.TimeoutConfig
	logger       logging.Logger

	mu sync.RWMutex
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithTransport sets the WebSocket configuration.
func WithTransport(c transport.Config) Option {
	return func(r *Router) {
		r.transport = c
	}
}

// WithTimeouts sets the component and connection timeouts.
func WithTimeouts(t core.TimeoutConfig) Option {
	return func(r *Router) {
		r.timeouts = t
	}
}

// WithMaxSessions bounds the number of concurrent live sessions.
func WithMaxSessions(n int) Option {
	return func(r *Router) {
		r.sessions = NewSessionManager(n)
	}
}

// WithConnLimit bounds the live connections a single client IP may hold.
func WithConnLimit(perClient int) Option {
	return func(r *Router) {
		r.conns = limits.NewConnectionLimiter(perClient)
	}
}

// WithErrorHandler sets the error handler for initial renders.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// New creates a new router.
func New(opts ...Option) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		sessions:  NewSessionManager(10000),
		conns:     limits.NewConnectionLimiter(0),
		transport: transport.DefaultConfig(),
		timeouts:  core.DefaultTimeoutConfig(),
		logger:    logging.NopLogger{},
		errorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.transport.ReadTimeout = r.timeouts.WebSocketRead
	r.transport.WriteTimeout = r.timeouts.WebSocketWrite
	return r
}

// Use adds middleware applied to routes registered afterwards.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// Sessions returns the live session manager.
func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

// Live registers a live route.
func (r *Router) Live(path string, component core.Factory, opts ...RouteOption) {
	route := &LiveRoute{Path: path, Component: component}
	for _, opt := range opts {
		opt(route)
	}

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.serveLive(w, req, route)
	})
	for i := len(route.Middleware) - 1; i >= 0; i-- {
		h = route.Middleware[i](h)
	}
	r.Handle(path, h)
}

// Handle registers a standard HTTP handler behind the global middleware.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mu.RLock()
	middleware := append([]Middleware(nil), r.middleware...)
	r.mu.RUnlock()

	h := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	r.mux.Handle(pattern, h)
}

// HandleFunc registers a standard HTTP handler function.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Shutdown stops every live session and waits until they have terminated
// or ctx is done.
func (r *Router) Shutdown(ctx context.Context) error {
	for _, s := range r.sessions.All() {
		s.Stop(core.TerminateShutdown)
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for r.sessions.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Router) serveLive(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	if isWebSocketRequest(req) {
		r.serveWebSocket(w, req, route)
		return
	}

	ctx := req.Context()
	component := route.Component()

	mountCtx, cancel := context.WithTimeout(ctx, r.timeouts.ComponentMount)
	err := component.Mount(mountCtx, extractParams(req), extractSession(req))
	cancel()
	if err != nil {
		r.errorHandler(w, req, fmt.Errorf("mount %s: %w", component.Name(), err))
		return
	}

	renderer := component.Render(ctx)
	if renderer == nil {
		r.errorHandler(w, req, ErrNilRenderer)
		return
	}
	if route.Layout != nil {
		renderer = route.Layout(renderer)
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	renderCtx, cancel := context.WithTimeout(ctx, r.timeouts.ComponentRender)
	err = renderer.Render(renderCtx, buf)
	cancel()
	if err != nil {
		r.errorHandler(w, req, fmt.Errorf("render %s: %w", component.Name(), err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (r *Router) serveWebSocket(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	ip := limits.ClientIP(req)
	if !r.conns.Acquire(ip) {
		r.logger.Warn("live connection refused", logging.String("client", ip))
		http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
		return
	}

	ws, err := transport.Accept(w, req, r.transport, r.logger)
	if err != nil {
		r.conns.Release(ip)
		r.logger.Warn("websocket upgrade failed",
			logging.String("path", req.URL.Path),
			logging.Err(err),
		)
		return
	}

	s := r.sessions.Create(route.Component(), extractParams(req), extractSession(req))
	// The connection outlives the upgrade request, so the loop gets its
	// own context.
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	logger := r.logger.With(logging.String("session", s.ID), logging.Component(s.Component.Name()))
	logger.Debug("live session started", logging.String("codec", ws.Codec().Name()))
	go func() {
		defer r.conns.Release(ip)
		r.messageLoop(logging.ContextWithLogger(ctx, logger), s, ws)
	}()
}

// messageLoop is the only goroutine touching the session's component.
func (r *Router) messageLoop(ctx context.Context, s *Session, ws transport.Transport) {
	logger := logging.L(ctx)
	defer r.endSession(s, ws)

	recv := ws.Receive()
	for {
		select {
		case msg, ok := <-recv:
			if !ok {
				s.Stop(core.TerminateNormal)
				return
			}
			s.Touch()

			switch msg.Type {
			case protocol.MsgHeartbeat:
				r.send(s, ws, protocol.OkReply(msg.Ref, nil))

			case protocol.MsgJoin:
				html, err := r.join(ctx, s)
				if err != nil {
					logger.Error("join failed", logging.Err(err))
					r.send(s, ws, protocol.ErrorReply(msg.Ref, err.Error()))
					s.Stop(core.TerminateError)
					return
				}
				r.send(s, ws, protocol.OkReply(msg.Ref, map[string]any{"html": html}))

			case protocol.MsgLeave:
				s.Stop(core.TerminateNormal)
				return

			case protocol.MsgEvent:
				if !s.Mounted() {
					r.send(s, ws, protocol.ErrorReply(msg.Ref, ErrNotJoined.Error()))
					continue
				}
				payload := msg.Payload
				if payload == nil {
					payload = map[string]any{}
				}
				err := r.call(ctx, r.timeouts.ComponentEvent, func(ctx context.Context) error {
					return s.Component.HandleEvent(ctx, msg.Event, payload)
				})
				if err != nil {
					logger.Debug("event rejected", logging.String("event", msg.Event), logging.Err(err))
					r.send(s, ws, protocol.ErrorReply(msg.Ref, err.Error()))
				} else {
					r.send(s, ws, protocol.OkReply(msg.Ref, nil))
				}
				r.rerender(ctx, s, ws)
			}

		case info := <-s.infoCh:
			s.Touch()
			if !s.Mounted() {
				logger.Debug("dropping info before join")
				continue
			}
			err := r.call(ctx, r.timeouts.ComponentEvent, func(ctx context.Context) error {
				return s.Component.HandleInfo(ctx, info)
			})
			if err != nil {
				logger.Warn("info rejected", logging.Err(err))
			}
			r.rerender(ctx, s, ws)

		case <-ws.Done():
			s.Stop(core.TerminateNormal)
			return

		case <-s.Done():
			return
		}
	}
}

func (r *Router) join(ctx context.Context, s *Session) (string, error) {
	if !s.Mounted() {
		err := r.call(ctx, r.timeouts.ComponentMount, func(ctx context.Context) error {
			return s.Component.Mount(ctx, s.Params, s.Data)
		})
		if err != nil {
			return "", fmt.Errorf("mount: %w", err)
		}
		s.setMounted()
	}
	return r.render(ctx, s)
}

func (r *Router) render(ctx context.Context, s *Session) (string, error) {
	renderer := s.Component.Render(ctx)
	if renderer == nil {
		return "", ErrNilRenderer
	}
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	err := r.call(ctx, r.timeouts.ComponentRender, func(ctx context.Context) error {
		return renderer.Render(ctx, buf)
	})
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

func (r *Router) rerender(ctx context.Context, s *Session, ws transport.Transport) {
	html, err := r.render(ctx, s)
	if err != nil {
		logging.L(ctx).Error("render failed", logging.Err(err))
		r.send(s, ws, protocol.ErrorMessage(err.Error()))
		return
	}
	r.send(s, ws, protocol.RenderMessage(html))
}

// call runs fn with a timeout derived from the session context, so a
// disconnect cancels work in flight.
func (r *Router) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (r *Router) send(s *Session, ws transport.Transport, msg *protocol.Message) {
	if err := ws.Send(msg); err != nil && !errors.Is(err, transport.ErrConnectionClosed) {
		r.logger.Warn("send failed", logging.String("session", s.ID), logging.Err(err))
	}
}

func (r *Router) endSession(s *Session, ws transport.Transport) {
	reason := s.terminateReason()
	r.sessions.Remove(s.ID)
	_ = ws.Close()

	if s.Mounted() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.ComponentEvent)
		if err := s.Component.Terminate(ctx, reason); err != nil {
			r.logger.Warn("terminate failed", logging.String("session", s.ID), logging.Err(err))
		}
		cancel()
	}
	r.logger.Debug("live session ended",
		logging.String("session", s.ID),
		logging.String("reason", reason.String()),
	)
}

func extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func extractSession(req *http.Request) core.Session {
	return core.Session{
		"remote_addr": req.RemoteAddr,
		"user_agent":  req.UserAgent(),
		"request_id":  req.Header.Get("X-Request-ID"),
	}
}

func isWebSocketRequest(req *http.Request) bool {
	return strings.Contains(strings.ToLower(req.Header.Get("Upgrade")), "websocket")
}
