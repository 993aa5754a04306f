// Package lookup fetches optional autofill data for the application form.
// Every lookup fails soft: errors are logged at debug level and yield nil.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/retry"
)

// Default endpoints.
const (
	DefaultGitHubAPI = "https://api.github.com"
	DefaultNominatim = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "applyform/1.0"
)

const maxBody = 1 << 20

var (
	errStatus      = errors.New("unexpected status")
	errBadURL      = errors.New("unsupported url")
	errPrivateHost = errors.New("private address not allowed")
)

// Profile is the public part of a GitHub user.
type Profile struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
}

// Metadata is what a page says about itself.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Address is a coarse postal address.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// Client performs lookups against external services.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	policy    retry.Policy
	logger    logging.Logger
	githubAPI string
	nominatim string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each lookup, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithEndpoints overrides the GitHub API and Nominatim base URLs.
func WithEndpoints(githubAPI, nominatim string) Option {
	return func(c *Client) {
		c.githubAPI = githubAPI
		c.nominatim = nominatim
	}
}

// WithHTTPClient replaces the HTTP client, including its dial policy.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a lookup client. By default it refuses to connect to
// loopback, private and link-local addresses, since page URLs come from
// form input.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      publicHTTPClient(),
		timeout:   5 * time.Second,
		policy:    retry.DefaultPolicy(),
		logger:    logging.NopLogger{},
		githubAPI: DefaultGitHubAPI,
		nominatim: DefaultNominatim,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func publicHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				return fmt.Errorf("%w: %s", errPrivateHost, host)
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

// GitHubProfile resolves a profile URL such as https://github.com/octocat.
func (c *Client) GitHubProfile(ctx context.Context, profileURL string) *Profile {
	u, err := parseHTTPURL(profileURL)
	if err != nil {
		c.logger.Debug("github lookup skipped", logging.Err(err))
		return nil
	}
	name := lastSegment(u.Path)
	if name == "" {
		return nil
	}

	var p Profile
	if err := c.getJSON(ctx, c.githubAPI+"/users/"+url.PathEscape(name), &p); err != nil {
		c.logger.Debug("github lookup failed", logging.String("user", name), logging.Err(err))
		return nil
	}
	return &p
}

// ReverseGeocode resolves coordinates to an address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) *Address {
	q := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	var body struct {
		Address struct {
			City        string `json:"city"`
			Town        string `json:"town"`
			Village     string `json:"village"`
			State       string `json:"state"`
			CountryCode string `json:"country_code"`
			Postcode    string `json:"postcode"`
		} `json:"address"`
	}
	if err := c.getJSON(ctx, c.nominatim+"/reverse?"+q.Encode(), &body); err != nil {
		c.logger.Debug("reverse geocode failed", logging.Err(err))
		return nil
	}

	a := body.Address
	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}
	return &Address{City: city, State: a.State, Country: a.CountryCode, Zip: a.Postcode}
}

// PageMetadata reads the title, description and preview image of a page.
func (c *Client) PageMetadata(ctx context.Context, pageURL string) *Metadata {
	u, err := parseHTTPURL(pageURL)
	if err != nil {
		c.logger.Debug("page lookup skipped", logging.Err(err))
		return nil
	}

	md, err := withTimeout(ctx, c, func(ctx context.Context) (*Metadata, error) {
		body, err := c.get(ctx, u.String(), "text/html")
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return parseMetadata(io.LimitReader(body, maxBody))
	})
	if err != nil {
		c.logger.Debug("page lookup failed", logging.String("url", u.String()), logging.Err(err))
		return nil
	}
	return md
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	_, err := withTimeout(ctx, c, func(ctx context.Context) (struct{}, error) {
		body, err := c.get(ctx, rawURL, "application/json")
		if err != nil {
			return struct{}{}, err
		}
		defer body.Close()
		if err := json.NewDecoder(io.LimitReader(body, maxBody)).Decode(v); err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("decode %s: %w", rawURL, err))
		}
		return struct{}{}, nil
	})
	return err
}

// get issues one GET. Client errors are permanent; server errors and
// rate limiting are retried.
func (c *Client) get(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, errPrivateHost) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	err = fmt.Errorf("%w: %s", errStatus, resp.Status)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, err
	}
	return nil, retry.Permanent(err)
}

func withTimeout[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return retry.Value(ctx, c.policy, fn)
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", errBadURL, raw)
	}
	return u, nil
}

func lastSegment(path string) string {
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
