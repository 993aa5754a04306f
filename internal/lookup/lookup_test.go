package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/pkg/retry"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(
		WithHTTPClient(srv.Client()),
		WithEndpoints(srv.URL, srv.URL),
		WithRetry(retry.Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}),
		WithTimeout(2*time.Second),
	)
}

func TestGitHubProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		if r.URL.Path != "/users/octocat" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"login":"octocat","avatar_url":"https://avatars.example/1","bio":null}`))
	}))
	defer srv.Close()
	c := testClient(srv)

	p := c.GitHubProfile(context.Background(), "https://github.com/octocat/")
	require.NotNil(t, p)
	assert.Equal(t, "octocat", p.Login)
	assert.Equal(t, "https://avatars.example/1", p.AvatarURL)
	assert.Empty(t, p.Bio)

	assert.Nil(t, c.GitHubProfile(context.Background(), "https://github.com/ghost"))
	assert.Nil(t, c.GitHubProfile(context.Background(), "not a url"))
}

func TestGitHubProfile_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	}))
	defer srv.Close()

	p := testClient(srv).GitHubProfile(context.Background(), "https://github.com/octocat")
	require.NotNil(t, p)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGitHubProfile_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.Nil(t, testClient(srv).GitHubProfile(context.Background(), "https://github.com/ghost"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "6.5244", r.URL.Query().Get("lat"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"address":{"town":"Ikeja","state":"Lagos","country_code":"ng","postcode":"100001"}}`))
	}))
	defer srv.Close()

	a := testClient(srv).ReverseGeocode(context.Background(), 6.5244, 3.3792)
	require.NotNil(t, a)
	assert.Equal(t, Address{City: "Ikeja", State: "Lagos", Country: "ng", Zip: "100001"}, *a)
}

func TestPageMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html><html><head>
<meta property="og:title" content="OG Title">
<title> Jane Doe </title>
<meta property="og:description" content="og desc">
<meta property="og:image" content="https://example.com/me.png">
</head><body><meta name="description" content="ignored"></body></html>`))
	}))
	defer srv.Close()

	md := testClient(srv).PageMetadata(context.Background(), srv.URL)
	require.NotNil(t, md)
	assert.Equal(t, "Jane Doe", md.Title)
	assert.Equal(t, "og desc", md.Description)
	assert.Equal(t, "https://example.com/me.png", md.Image)
}

func TestPageMetadata_RejectsPrivateHosts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(WithRetry(retry.Policy{Attempts: 2, InitialDelay: time.Millisecond}))
	assert.Nil(t, c.PageMetadata(context.Background(), srv.URL))
	assert.Nil(t, c.PageMetadata(context.Background(), "file:///etc/passwd"))
	assert.Zero(t, calls.Load())
}

func TestLookup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(srv.Client()), WithEndpoints(srv.URL, srv.URL), WithTimeout(50*time.Millisecond))
	start := time.Now()
	assert.Nil(t, c.GitHubProfile(context.Background(), "https://github.com/slow"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseMetadata_Fallbacks(t *testing.T) {
	md, err := parseMetadata(strings.NewReader(`<html><head><meta property="og:title" content="Only OG"><meta name="description" content="plain"></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Only OG", md.Title)
	assert.Equal(t, "plain", md.Description)
	assert.Empty(t, md.Image)
}
