package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/metrics"
)

// Error is a transport failure reduced to the message the server sent.
// Status codes and headers are intentionally not carried.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Options adjusts a single call.
type Options struct {
	Header http.Header
	Query  url.Values
}

// sessionJar holds the upstream session cookie and can be emptied while
// requests are in flight.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &sessionJar{jar: jar}, nil
}

func (s *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

func (s *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	return jar.Cookies(u)
}

func (s *sessionJar) reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cookie jar: %w", err)
	}
	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()
	return nil
}

type Client struct {
	http    *http.Client
	jar     *sessionJar
	baseURL *url.URL
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New builds a client with its own cookie jar, so each instance carries
// one upstream session.
func New(cfg config.UpstreamConfig, log zerolog.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", cfg.BaseURL)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		jar:     jar,
		baseURL: base,
		log:     log,
		metrics: m,
	}, nil
}

// ResetSession forgets every cookie the upstream has set, so later calls
// go out anonymous.
func (c *Client) ResetSession() {
	if err := c.jar.reset(); err != nil {
		c.log.Error().Err(err).Msg("reset upstream session")
	}
}

func (c *Client) Get(ctx context.Context, path string, opts *Options) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts *Options) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts *Options) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

func (c *Client) Delete(ctx context.Context, path string, opts *Options) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// Do performs one call and returns the raw response body. Any failure is
// returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *Options) (json.RawMessage, error) {
	data, err := c.do(ctx, method, path, body, opts)
	c.metrics.UpstreamCall(method, err)
	if err != nil {
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Err(err).
			Msg("upstream call failed")
	}
	return data, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, opts *Options) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, path, body, opts)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("read response: %v", err)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &Error{Message: extractMessage(raw, res.StatusCode)}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, opts *Options) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	target := c.baseURL.ResolveReference(ref)

	if opts != nil && len(opts.Query) > 0 {
		q := target.Query()
		for key, values := range opts.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case json.RawMessage:
			reader = bytes.NewReader(b)
		case []byte:
			reader = bytes.NewReader(b)
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
			reader = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts != nil {
		for key, values := range opts.Header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}
	return req, nil
}

func extractMessage(raw []byte, status int) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch m := payload.Message.(type) {
		case string:
			if strings.TrimSpace(m) != "" {
				return m
			}
		case []any:
			// validation errors come back as a list of strings
			parts := make([]string, 0, len(m))
			for _, p := range m {
				parts = append(parts, fmt.Sprint(p))
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

// Decode unmarshals a response body; an empty body leaves out untouched.
func Decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
