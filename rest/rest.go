// Package rest implements [taskchat.OperationClient] over the task backend's
// HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/fwojciec/taskchat"
	taskjson "github.com/fwojciec/taskchat/json"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the task backend address used when none is configured.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 10 * time.Second
	// CredentialCookie is the cookie the backend reads the credential from.
	CredentialCookie = "auth_token"

	maxBodyBytes = 1 << 20
)

// Interface compliance check.
var _ taskchat.OperationClient = (*Client)(nil)

// Client calls the task backend. It holds no per-user state and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a [Client].
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call performs one request. body, when non-nil, is sent as JSON. The
// credential travels as the backend's session cookie. The envelope is decoded
// whatever the status code, since the backend reports domain errors through it.
func (c *Client) Call(ctx context.Context, method, path, credential string, body any) taskchat.OperationResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	log := c.log.With().Str("method", method).Str("path", path).Logger()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			log.Error().Err(err).Msg("marshal request")
			return taskchat.Failure(taskchat.MsgUnexpected)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		log.Error().Err(err).Msg("build request")
		return taskchat.Failure(taskchat.MsgUnexpected)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: credential})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := transportMessage(err)
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("backend call failed")
		return taskchat.Failure(msg)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("read response")
		return taskchat.Failure(transportMessage(err))
	}

	res, err := taskjson.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("decode response")
		return taskchat.Failure(taskchat.MsgUnexpected)
	}
	log.Debug().Int("status", resp.StatusCode).Bool("ok", res.OK()).Dur("elapsed", time.Since(start)).Msg("backend call")
	return res
}

// transportMessage maps a transport failure to its user-facing message.
func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return taskchat.MsgTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return taskchat.MsgTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return taskchat.MsgUnavailable
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "dial" {
		return taskchat.MsgUnavailable
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return taskchat.MsgUnavailable
	}
	return taskchat.MsgUnexpected
}
