// Package feed reads current drone positions from the external drone API.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"dronewatch/internal/drone"
	"dronewatch/internal/upstream"
	"dronewatch/pkg/platform/sentinel"
)

const (
	source = "drone-feed"

	// DefaultTimeout bounds one feed request when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// Client fetches the drone list with one GET per call.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// New creates a feed client for url. An empty url is allowed; the job checks
// configuration before every tick.
func New(url string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logger,
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newValidator checks OwnerID by its string form so `required` rejects a
// missing or empty owner.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if id, ok := field.Interface().(drone.OwnerID); ok {
			return id.String()
		}
		return nil
	}, drone.OwnerID{})
	return v
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.url
}

// Fetch returns the drones currently reported by the feed. Any error means
// there is nothing usable this time; the returned slice is then empty.
// Items that fail validation are dropped individually.
func (c *Client) Fetch(ctx context.Context) ([]drone.Position, error) {
	if c.url == "" {
		return nil, upstream.NewError(upstream.CategoryOutage, source, "feed url not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, upstream.NewError(upstream.CategoryOutage, source, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		uerr := upstream.TransportError(source, err)
		c.logger.ErrorContext(ctx, "drone feed request failed", "category", uerr.Category, "error", err)
		return nil, uerr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.ErrorContext(ctx, "drone feed returned error status", "status", resp.StatusCode)
		return nil, upstream.StatusError(source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		uerr := upstream.TransportError(source, err)
		c.logger.ErrorContext(ctx, "read drone feed body", "error", err)
		return nil, uerr
	}

	return c.decode(ctx, body)
}

func (c *Client) decode(ctx context.Context, body []byte) ([]drone.Position, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.ErrorContext(ctx, "drone feed body is not valid JSON", "error", err)
		return nil, upstream.NewError(upstream.CategoryBadData, source, "decode body", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.logger.WarnContext(ctx, "drone feed did not return a list")
		return nil, upstream.NewError(upstream.CategoryContractMismatch, source, "expected a JSON list", nil)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, upstream.NewError(upstream.CategoryBadData, source, "decode list", err)
	}

	positions := make([]drone.Position, 0, len(items))
	for i, item := range items {
		var p drone.Position
		if err := json.Unmarshal(item, &p); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed drone", "index", i, "error", err)
			continue
		}
		if err := c.validate.Struct(p); err != nil {
			c.logger.WarnContext(ctx, "skipping invalid drone", "index", i, "error", err)
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// Check returns an error describing why the client cannot be used.
func (c *Client) Check() error {
	if c.url == "" {
		return fmt.Errorf("drone feed url: %w", sentinel.ErrNotConfigured)
	}
	return nil
}
