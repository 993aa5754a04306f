package logging

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSlogLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(WithOutput(&buf), WithJSON(), WithLevel(slog.LevelDebug))

	logger.With(Component("wizard")).Info("step advanced", Int("step", 2), Strings("fields", []string{"a", "b"}))

	out := buf.String()
	assert.Contains(t, out, `"component":"wizard"`)
	assert.Contains(t, out, `"step":2`)
	assert.Contains(t, out, `"fields":"a,b"`)
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(WithOutput(&buf), WithLevel(slog.LevelWarn))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestRequestLogger_InjectsLogger(t *testing.T) {
	var seen Logger
	h := RequestLogger(NopLogger{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = L(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, NopLogger{}, seen)
}
