// Package core provides the component contract shared by the router, the
// test harness and the application.
package core

import (
	"context"
	"io"
)

// Component is a stateful server-side view. One instance serves one
// connected browser session; its methods are never called concurrently.
type Component interface {
	// Name returns the component type name used in logs.
	Name() string

	// Mount is called once, before the first render of a session.
	Mount(ctx context.Context, params Params, session Session) error

	// Render returns the current HTML representation of the component.
	// It is called after Mount and after each event or info message.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a user interaction forwarded by the client.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo processes a server-side message addressed to the session,
	// such as uploaded file metadata.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate is called when the session ends.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Factory creates a fresh component for each session.
type Factory func() Component

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderers.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params contains URL path values and query strings of the connection.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// GetDefault returns a parameter value or the default if not found.
func (p Params) GetDefault(key, defaultValue string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return defaultValue
}

// Session keys set by the router.
const (
	// SessionID holds the live session identifier. It is only present on
	// connected (WebSocket) mounts.
	SessionID = "live_session_id"

	// SessionConnected is true on connected mounts.
	SessionConnected = "live_connected"
)

// Session contains data passed from the HTTP handler to Mount.
type Session map[string]any

// Get returns a session value.
func (s Session) Get(key string) any {
	return s[key]
}

// GetString returns a session value as string.
func (s Session) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Connected reports whether the mount happens over a live connection.
func (s Session) Connected() bool {
	v, _ := s[SessionConnected].(bool)
	return v
}

// TerminateReason indicates why a component is being terminated.
type TerminateReason int

const (
	// TerminateNormal indicates clean disconnection.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown indicates server shutdown.
	TerminateShutdown
	// TerminateError indicates termination due to an error.
	TerminateError
	// TerminateTimeout indicates termination due to inactivity.
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	case TerminateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// BaseComponent provides no-op defaults. Embed it to implement only the
// methods a component needs.
type BaseComponent struct{}

// Name returns an empty string (override in your component).
func (BaseComponent) Name() string {
	return ""
}

// Mount does nothing by default.
func (BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

// HandleEvent does nothing by default.
func (BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

// HandleInfo does nothing by default.
func (BaseComponent) HandleInfo(ctx context.Context, msg any) error {
	return nil
}

// Terminate does nothing by default.
func (BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}
