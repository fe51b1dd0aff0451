// Package directory looks up drone owners in the external owner directory.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"dronewatch/internal/owner"
	"dronewatch/internal/upstream"
	"dronewatch/pkg/platform/circuit"
	"dronewatch/pkg/platform/sentinel"
)

const (
	source = "owner-directory"

	// Placeholder is replaced by the escaped owner id when present in the template.
	Placeholder = "{owner_id}"

	// DefaultTimeout bounds a single owner lookup.
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// Client performs one GET per Lookup. It is safe for concurrent use.
type Client struct {
	template   string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	breaker    *circuit.Breaker
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

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithRateLimit caps lookups per second. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(cl *Client) {
		if perSecond <= 0 {
			cl.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

// New creates a directory client. The template may be empty; the job refuses
// to run until it is configured.
func New(template string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	c := &Client{
		template:   template,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		breaker:    circuit.New(source),
		logger:     logger,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check returns an error describing why the client cannot be used.
func (c *Client) Check() error {
	if strings.TrimSpace(c.template) == "" {
		return fmt.Errorf("owner directory url template: %w", sentinel.ErrNotConfigured)
	}
	return nil
}

// OwnerURL builds the lookup URL for ownerID.
func OwnerURL(template, ownerID string) string {
	escaped := url.PathEscape(ownerID)
	if strings.Contains(template, Placeholder) {
		return strings.ReplaceAll(template, Placeholder, escaped)
	}
	return strings.TrimRight(template, "/") + "/" + escaped
}

// Lookup fetches the owner with ownerID. Every failure is returned as an
// error; there are no partial or default records.
func (c *Client) Lookup(ctx context.Context, ownerID string) (owner.Record, error) {
	if err := c.Check(); err != nil {
		return owner.Record{}, err
	}
	if !c.breaker.Allow() {
		return owner.Record{}, upstream.NewError(upstream.CategoryCircuitOpen, source, "circuit open", nil)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return owner.Record{}, upstream.NewError(upstream.CategoryTimeout, source, "rate limit wait", err)
		}
	}

	rec, err := c.fetch(ctx, ownerID)
	c.record(ctx, err)
	return rec, err
}

func (c *Client) fetch(ctx context.Context, ownerID string) (owner.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, OwnerURL(c.template, ownerID), nil)
	if err != nil {
		return owner.Record{}, upstream.NewError(upstream.CategoryOutage, source, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return owner.Record{}, upstream.TransportError(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return owner.Record{}, upstream.StatusError(source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return owner.Record{}, upstream.TransportError(source, err)
	}

	var rec owner.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return owner.Record{}, upstream.NewError(upstream.CategoryBadData, source, "decode owner", err)
	}
	if err := c.validate.Struct(rec); err != nil {
		return owner.Record{}, upstream.NewError(upstream.CategoryContractMismatch, source, "invalid owner", err)
	}
	return rec, nil
}

// record feeds outage-class results into the breaker. A 404 or a bad payload
// says nothing about directory health.
func (c *Client) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "owner directory circuit closed")
		}
		return
	}
	if !upstream.IsOutage(err) {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "owner directory circuit opened", "error", err)
	}
}
