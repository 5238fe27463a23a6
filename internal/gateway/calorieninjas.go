// internal/gateway/calorieninjas.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nutrilog/internal/models"
)

// Name identifies the upstream in error envelopes.
const Name = "CalorieNinjas"

var ErrEmptyQuery = errors.New("query is required")

// Gateway resolves a free-text food description into nutrition facts.
type Gateway interface {
	Lookup(ctx context.Context, query string) ([]models.NutritionFact, error)
}

// Error is returned for any upstream failure. StatusCode is zero when the
// upstream never produced a usable response.
type Error struct {
	StatusCode int
	Details    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error %d: %s", strings.ToLower(Name), e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s request failed: %v", strings.ToLower(Name), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each lookup. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupResponse struct {
	Items []models.NutritionFact `json:"items"`
}

// Lookup issues one GET to the upstream. It never retries.
func (c *Client) Lookup(ctx context.Context, query string) ([]models.NutritionFact, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("invalid base url: %w", err)}
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: statusIfFailed(resp.StatusCode), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Details: string(body)}
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if lr.Items == nil {
		lr.Items = []models.NutritionFact{}
	}
	return lr.Items, nil
}

func statusIfFailed(code int) int {
	if code < 200 || code > 299 {
		return code
	}
	return 0
}
