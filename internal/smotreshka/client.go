// Package smotreshka is the authenticated client for the Smotreshka
// subscription API: one cookie session established by Login and reused for
// every catalog, program and playback call.
package smotreshka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/snapetech/smotreshka-ripper/internal/httpclient"
	"github.com/snapetech/smotreshka-ripper/internal/metrics"
)

const (
	DefaultBaseURL   = "https://fe.smotreshka.tv"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36 Edg/105.0.1343.33"
)

// Client talks to one provider base URL. It is not safe for concurrent Login
// calls; after Login it only reads the cookie jar.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *httpclient.HostLimiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the default 60s client. A cookie jar is attached if
// the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRequestRate paces requests to at most perSecond; 0 means unpaced.
func WithRequestRate(perSecond float64) Option {
	return func(c *Client) { c.limiter = httpclient.NewHostLimiter(perSecond) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.Default()
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	c.logger = c.logger.Named("smotreshka")
	return c, nil
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode == http.StatusOK }

// Do sends one request relative to the base URL. form, when non-nil, is sent
// url-encoded. Transport failures come back as *NetworkError; any HTTP status
// is a successful Do.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, form url.Values) (*Response, error) {
	rawURL := c.baseURL + path
	endpoint := endpointLabel(path)
	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		err = classifyWait(ctx, method, rawURL, err)
		c.metrics.ObserveRequest(endpoint, outcome(err), 0)
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("request", zap.String("method", method), zap.String("url", rawURL))
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(method, rawURL, err)
		c.metrics.ObserveRequest(endpoint, outcome(err), time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = classify(method, rawURL, err)
		c.metrics.ObserveRequest(endpoint, outcome(err), time.Since(start))
		return nil, err
	}
	result := "ok"
	if resp.StatusCode != http.StatusOK {
		result = "status"
	}
	c.metrics.ObserveRequest(endpoint, result, time.Since(start))
	c.logger.Debug("response",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Login authenticates with email and password. The session cookies are kept
// in the client's jar; Login is never repeated automatically.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.logger.Info("login", zap.String("user", username))
	resp, err := c.Do(ctx, http.MethodPost, "/login", nil, url.Values{
		"email":    {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &AuthError{StatusCode: resp.StatusCode}
	}
	c.logger.Info("authenticated", zap.String("user", username))
	if u, err := url.Parse(c.baseURL); err == nil {
		names := make([]string, 0)
		for _, ck := range c.http.Jar.Cookies(u) {
			names = append(names, ck.Name)
		}
		c.logger.Debug("collected cookies", zap.Strings("names", names))
	}
	return nil
}

// Channels fetches the full channel catalog.
func (c *Client) Channels(ctx context.Context) (*ChannelsResponse, error) {
	var out ChannelsResponse
	if err := c.getJSON(ctx, "/channels", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Programs fetches the EPG programs of one channel.
func (c *Client) Programs(ctx context.Context, channelID string) (*ProgramsResponse, error) {
	var out ProgramsResponse
	if err := c.getJSON(ctx, "/channels/"+url.PathEscape(channelID)+"/programs", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaybackInfo fetches the languages and renditions of one channel.
func (c *Client) PlaybackInfo(ctx context.Context, channelID string) (*PlaybackInfoResponse, error) {
	var out PlaybackInfoResponse
	if err := c.getJSON(ctx, "/playback-info/"+url.PathEscape(channelID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, http.Header{"Accept": {"application/json"}}, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: http.MethodGet, URL: c.baseURL + path, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &DecodeError{URL: c.baseURL + path, Err: err}
	}
	return nil
}

// endpointLabel maps a request path to a bounded metrics label.
func endpointLabel(path string) string {
	switch {
	case path == "/login":
		return "login"
	case path == "/channels":
		return "channels"
	case strings.HasPrefix(path, "/channels/") && strings.HasSuffix(path, "/programs"):
		return "programs"
	case strings.HasPrefix(path, "/playback-info/"):
		return "playback_info"
	}
	return "other"
}

func outcome(err error) string {
	if ne, ok := err.(*NetworkError); ok {
		return string(ne.Kind)
	}
	return "error"
}
