package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"iprescribe-console/internal/metrics"
)

const (
	DefaultBaseURL   = "https://stagingapi.iprescribe.online/api/v1"
	DefaultLoginPath = "/login"
	DefaultTimeout   = 30 * time.Second
	defaultUserAgent = "iprescribe-console"
)

// CredentialStore is the part of the session store the client depends on.
// The client reads the credential on every request and clears it when the
// API rejects it.
type CredentialStore interface {
	Credential() string
	Clear() error
}

// Invalidation describes a credential rejected by the API.
type Invalidation struct {
	Credential string
	Method     string
	Path       string
	At         time.Time
}

type InvalidationListener func(ctx context.Context, ev Invalidation)

type Options struct {
	BaseURL   string
	LoginPath string
	Timeout   time.Duration
	Transport http.RoundTripper
	UserAgent string
	Logger    *slog.Logger
}

type Client struct {
	baseURL   *url.URL
	loginPath string
	http      *http.Client
	store     CredentialStore
	logger    *slog.Logger

	mu        sync.Mutex
	listeners []InvalidationListener
}

func New(store CredentialStore, opts Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("apiclient: nil credential store")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: unsupported base URL scheme %q", base.Scheme)
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if !strings.HasPrefix(opts.LoginPath, "/") {
		opts.LoginPath = "/" + opts.LoginPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		baseURL:   base,
		loginPath: opts.LoginPath,
		store:     store,
		logger:    opts.Logger,
	}
	c.http = &http.Client{
		Timeout:   opts.Timeout,
		Transport: &authTransport{base: opts.Transport, client: c, userAgent: opts.UserAgent},
	}
	return c, nil
}

// OnInvalidated registers fn to be called after a rejected credential has
// been removed from the store.
func (c *Client) OnInvalidated(fn InvalidationListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// invalidate clears the store and notifies listeners once per credential:
// concurrent 401s carrying the same credential find it already gone.
func (c *Client) invalidate(ctx context.Context, credential string, req *http.Request) {
	c.mu.Lock()
	if credential == "" || c.store.Credential() != credential {
		c.mu.Unlock()
		return
	}
	if err := c.store.Clear(); err != nil {
		c.logger.ErrorContext(ctx, "clear rejected credential failed", "error", err)
	}
	listeners := make([]InvalidationListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	metrics.SessionInvalidated()
	ev := Invalidation{Credential: credential, Method: req.Method, Path: req.URL.Path, At: time.Now()}
	c.logger.WarnContext(ctx, "session invalidated by API", "method", ev.Method, "path", ev.Path)
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type call struct {
	method string
	path   string
	route  string
	query  url.Values
	body   any
	public bool
}

// doJSON issues the call and decodes the response body into out.
func (c *Client) doJSON(ctx context.Context, cl call, out any) error {
	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	if cl.public {
		ctx = withoutSession(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl.path, cl.query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(cl.method, cl.route, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", cl.method, cl.route, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(cl.method, cl.route, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", cl.method, cl.route, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(cl.method, cl.route, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", cl.method, cl.route, err)
	}
	return nil
}
