// Package client is the HTTP client of the stremur API. It maps error
// envelopes back to the errs sentinels.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/stremur/internal/model"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/and161185/stremur/internal/service"
	"github.com/and161185/stremur/internal/session"
	"github.com/gofrs/uuid/v5"
)

var (
	_ service.WatchStateService = (*Client)(nil)
	_ session.Directory         = (*Client)(nil)
)

// APIError is a non-2xx response. It unwraps to the matching sentinel.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the sentinel for Code, if any.
func (e *APIError) Unwrap() error { return httpapi.SentinelFor(e.Code) }

// Client talks to one stremur server.
type Client struct {
	base  string
	http  *http.Client
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for the server at addr, e.g. http://localhost:8080.
func New(addr string, opts ...Option) (*Client, error) {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	u, err := url.Parse(addr)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid server address %q", addr)
	}
	c := &Client{base: addr + httpapi.Prefix, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var env httpapi.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err != nil {
			return &APIError{Status: resp.StatusCode, Message: resp.Status}
		}
		return &APIError{
			Status:    resp.StatusCode,
			Code:      env.Error.Code,
			Message:   env.Error.Message,
			RequestID: env.Error.RequestID,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func profilePath(id uuid.UUID) string { return "/profiles/" + id.String() }

func historyPath(s model.Session) string { return profilePath(s.ProfileID) + "/history" }

func watchlistPath(s model.Session) string { return profilePath(s.ProfileID) + "/watchlist" }

func keyPath(k model.MediaKey) string {
	return "/" + string(k.Type) + "/" + strconv.FormatInt(k.ID, 10)
}

// IsAPIError reports whether err came from the server with the given status.
func IsAPIError(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}
