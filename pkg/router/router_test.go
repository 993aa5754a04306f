package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/pkg/core"
	"github.com/gabrielmiguelok/applyform/pkg/protocol"
	"github.com/gabrielmiguelok/applyform/pkg/transport"
)

// counter is a minimal live component.
type counter struct {
	core.BaseComponent

	mu         sync.Mutex
	count      int
	sessionID  string
	connected  bool
	terminated chan core.TerminateReason
}

func newCounter() *counter {
	return &counter{terminated: make(chan core.TerminateReason, 1)}
}

func (c *counter) Name() string { return "counter" }

func (c *counter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if params.Get("fail") != "" {
		return errors.New("mount refused")
	}
	c.sessionID = session.GetString(core.SessionID)
	c.connected = session.Connected()
	return nil
}

func (c *counter) Render(ctx context.Context) core.Renderer {
	c.mu.Lock()
	html := fmt.Sprintf("<p>count=%d connected=%t</p>", c.count, c.connected)
	c.mu.Unlock()
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, html)
		return err
	})
}

func (c *counter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch event {
	case "inc":
		n, err := protocol.PayloadInt(payload, "by")
		if err != nil {
			return err
		}
		c.count += n
		return nil
	default:
		return fmt.Errorf("unknown event %q", event)
	}
}

func (c *counter) HandleInfo(ctx context.Context, msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := msg.(int); ok {
		c.count = n
	}
	return nil
}

func (c *counter) Terminate(ctx context.Context, reason core.TerminateReason) error {
	c.terminated <- reason
	return nil
}

func document(content core.Renderer) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<html><body>"); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func TestRouter_InitialHTTPRender(t *testing.T) {
	r := New()
	r.Live("/", func() core.Component { return newCounter() }, WithLayout(document))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html><body><p>count=0 connected=false</p></body></html>", rec.Body.String())
}

func TestRouter_MountErrorUsesErrorHandler(t *testing.T) {
	var got error
	r := New(WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}))
	r.Live("/", func() core.Component { return newCounter() })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?fail=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "mount refused")
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := New()
	r.Use(tag("a"))
	r.Use(tag("b"))
	r.HandleFunc("GET /ping", func(w http.ResponseWriter, req *http.Request) {
		order = append(order, "handler")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

// liveServer starts a router with a counter route and dials it over msgpack.
func liveServer(t *testing.T) (*Router, *counter, *transport.WebSocket) {
	t.Helper()

	comp := newCounter()
	r := New()
	r.Live("/", func() core.Component { return comp })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := transport.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "msgpack", transport.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return r, comp, ws
}

func nextMessage(t *testing.T, ws *transport.WebSocket) *protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-ws.Receive():
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func join(t *testing.T, ws *transport.WebSocket) string {
	t.Helper()
	require.NoError(t, ws.Send(protocol.JoinMessage(nil).WithRef("1")))
	reply := nextMessage(t, ws)
	require.Equal(t, protocol.MsgReply, reply.Type)
	require.Equal(t, protocol.StatusOK, reply.GetPayloadString("status"))
	response, _ := reply.Payload["response"].(map[string]any)
	return protocol.PayloadString(response, "html")
}

func TestRouter_LiveSession(t *testing.T) {
	r, comp, ws := liveServer(t)

	assert.Equal(t, "<p>count=0 connected=true</p>", join(t, ws))
	require.Equal(t, 1, r.Sessions().Count())

	require.NoError(t, ws.Send(protocol.EventMessage("inc", map[string]any{"by": 3}).WithRef("2")))
	reply := nextMessage(t, ws)
	assert.Equal(t, "2", reply.Ref)
	assert.Equal(t, protocol.StatusOK, reply.GetPayloadString("status"))
	render := nextMessage(t, ws)
	assert.Equal(t, protocol.MsgRender, render.Type)
	assert.Equal(t, "<p>count=3 connected=true</p>", render.GetPayloadString("html"))

	comp.mu.Lock()
	id := comp.sessionID
	comp.mu.Unlock()
	s, ok := r.Sessions().Get(id)
	require.True(t, ok, "component sees its session id")

	require.NoError(t, s.Send(42))
	render = nextMessage(t, ws)
	assert.Equal(t, "<p>count=42 connected=true</p>", render.GetPayloadString("html"))

	require.NoError(t, ws.Send(protocol.NewMessage(protocol.MsgLeave, "leave")))
	select {
	case reason := <-comp.terminated:
		assert.Equal(t, core.TerminateNormal, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("component not terminated")
	}
	assert.Eventually(t, func() bool { return r.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Send(1), ErrSessionClosed)
}

func TestRouter_EventErrors(t *testing.T) {
	_, _, ws := liveServer(t)

	require.NoError(t, ws.Send(protocol.EventMessage("inc", map[string]any{"by": 1}).WithRef("early")))
	reply := nextMessage(t, ws)
	assert.Equal(t, protocol.StatusError, reply.GetPayloadString("status"))

	join(t, ws)

	require.NoError(t, ws.Send(protocol.EventMessage("explode", nil).WithRef("3")))
	reply = nextMessage(t, ws)
	assert.Equal(t, "3", reply.Ref)
	assert.Equal(t, protocol.StatusError, reply.GetPayloadString("status"))
	response, _ := reply.Payload["response"].(map[string]any)
	assert.Contains(t, protocol.PayloadString(response, "reason"), "explode")

	require.NoError(t, ws.Send(protocol.HeartbeatMessage().WithRef("hb")))
	// The failed event still re-renders before the heartbeat reply.
	assert.Equal(t, protocol.MsgRender, nextMessage(t, ws).Type)
	hb := nextMessage(t, ws)
	assert.Equal(t, "hb", hb.Ref)
}

func TestRouter_ConnLimit(t *testing.T) {
	r := New(WithConnLimit(1))
	r.Live("/", func() core.Component { return newCounter() })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	first, err := transport.Dial(ctx, url, "msgpack", transport.DefaultConfig(), nil)
	require.NoError(t, err)
	join(t, first)

	_, err = transport.Dial(ctx, url, "msgpack", transport.DefaultConfig(), nil)
	require.Error(t, err, "second connection from the same client is refused")
	assert.Equal(t, int64(1), r.conns.Blocked())

	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool { return r.conns.Count("127.0.0.1") == 0 }, 5*time.Second, 10*time.Millisecond)

	second, err := transport.Dial(ctx, url, "msgpack", transport.DefaultConfig(), nil)
	require.NoError(t, err)
	_ = second.Close()
}

func TestRouter_Shutdown(t *testing.T) {
	r, comp, ws := liveServer(t)
	join(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, core.TerminateShutdown, <-comp.terminated)
}

func TestSessionManager(t *testing.T) {
	m := NewSessionManager(2)

	a := m.Create(newCounter(), nil, nil)
	time.Sleep(time.Millisecond)
	b := m.Create(newCounter(), nil, nil)
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, a.ID, a.Data.GetString(core.SessionID))
	assert.True(t, a.Data.Connected())

	b.Touch()
	c := m.Create(newCounter(), nil, nil)
	assert.Equal(t, 2, m.Count())
	_, ok := m.Get(a.ID)
	assert.False(t, ok, "least recently active session evicted")
	assert.Equal(t, core.TerminateTimeout, a.terminateReason())
	assert.ErrorIs(t, a.Send("x"), ErrSessionClosed)

	time.Sleep(5 * time.Millisecond)
	c.Touch()
	assert.Equal(t, 1, m.Cleanup(3*time.Millisecond))
	_, ok = m.Get(b.ID)
	assert.False(t, ok)
	_, ok = m.Get(c.ID)
	assert.True(t, ok)

	m.Remove(c.ID)
	assert.Zero(t, m.Count())
}

func TestSession_SendBusy(t *testing.T) {
	s := newSession(newCounter(), nil, nil)
	for i := 0; i < infoBuffer; i++ {
		require.NoError(t, s.Send(i))
	}
	assert.ErrorIs(t, s.Send("overflow"), ErrSessionBusy)
}

func TestIsWebSocketRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isWebSocketRequest(req))
	req.Header.Set("Upgrade", "WebSocket")
	assert.True(t, isWebSocketRequest(req))
}

func TestRecovery(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSecureHeaders(t *testing.T) {
	h := SecureHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "no HSTS over plain HTTP")
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
