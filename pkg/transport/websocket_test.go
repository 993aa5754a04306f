package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/pkg/protocol"
)

func TestWebSocket_OriginValidation(t *testing.T) {
	tests := []struct {
		name          string
		allowed       []string
		origin        string
		host          string
		expectAllowed bool
	}{
		{name: "same-origin allowed", origin: "https://example.com", host: "example.com", expectAllowed: true},
		{name: "no origin allowed", origin: "", host: "example.com", expectAllowed: true},
		{name: "explicit origin allowed", allowed: []string{"https://allowed.com"}, origin: "https://allowed.com", host: "example.com", expectAllowed: true},
		{name: "origin not in list blocked", allowed: []string{"https://allowed.com"}, origin: "https://attacker.com", host: "example.com", expectAllowed: false},
		{name: "wildcard allows all", allowed: []string{"*"}, origin: "https://any-site.com", host: "example.com", expectAllowed: true},
		{name: "cross-origin blocked by default", origin: "https://attacker.com", host: "example.com", expectAllowed: false},
		{name: "malformed origin blocked", origin: "://bad", host: "example.com", expectAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectAllowed, isOriginAllowed(tt.origin, tt.host, tt.allowed))
		})
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := Accept(w, r, DefaultConfig(), nil)
		assert.ErrorIs(t, err, ErrOriginNotAllowed)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://attacker.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// echoServer replies to every event with a render message echoing its name.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Accept(w, r, DefaultConfig(), nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for msg := range ws.Receive() {
			_ = ws.Send(protocol.RenderMessage(ws.Codec().Name() + ":" + msg.Event))
		}
	}))
}

func TestWebSocket_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, err := Dial(ctx, wsURL, codec, DefaultConfig(), nil)
			require.NoError(t, err)
			defer client.Close()
			assert.Equal(t, codec, client.Codec().Name())

			require.NoError(t, client.Send(protocol.EventMessage("next", nil)))
			select {
			case msg := <-client.Receive():
				require.NotNil(t, msg)
				assert.Equal(t, protocol.MsgRender, msg.Type)
				assert.Equal(t, codec+":next", msg.GetPayloadString("html"))
			case <-ctx.Done():
				t.Fatal("no reply")
			}
		})
	}
}

func TestWebSocket_SendAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "json", DefaultConfig(), nil)
	require.NoError(t, err)

	_ = client.Close()
	assert.NoError(t, client.Close(), "second close is a no-op")
	assert.ErrorIs(t, client.Send(protocol.HeartbeatMessage()), ErrConnectionClosed)

	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("done not closed")
	}
}

func TestDial_UnknownCodec(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1", "xml", DefaultConfig(), nil)
	assert.ErrorIs(t, err, protocol.ErrUnknownCodec)
}
