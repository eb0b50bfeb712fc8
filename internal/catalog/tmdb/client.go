// Package tmdb is a minimal TMDB client resolving titles and posters by id.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/stremur/internal/catalog"
	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
)

// DefaultBaseURL is the public TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// details covers both /movie/{id} (title) and /tv/{id} (name) payloads.
type details struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

// Client looks up movie and tv details.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ catalog.Lookup = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup fetches /movie/{id} or /tv/{id} depending on the media type.
func (c *Client) Lookup(ctx context.Context, key model.MediaKey) (*model.CatalogItem, error) {
	if !key.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown media type %q", errs.ErrValidation, key.Type)
	}
	if key.ID <= 0 {
		return nil, fmt.Errorf("%w: media id must be positive", errs.ErrValidation)
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/%s/%d", c.baseURL, key.Type, key.ID))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("tmdb %s: %w", key, errs.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tmdb %s details returned %d (latency=%v)", key.Type, resp.StatusCode, latency)
	}

	var payload details
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", key.Type, err)
	}
	item := &model.CatalogItem{Media: key, Title: payload.Title}
	if key.Type == model.MediaTV || item.Title == "" {
		item.Title = payload.Name
	}
	if payload.PosterPath != "" {
		p := payload.PosterPath
		item.PosterPath = &p
	}
	return item, nil
}
