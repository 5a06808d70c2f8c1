package fcc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
	"github.com/couchcryptid/fcc-block-geocoder/internal/observability"
)

// DefaultBaseURL is the FCC Census Block "find" endpoint.
const DefaultBaseURL = "https://geo.fcc.gov/api/census/block/find"

const defaultTimeout = 30 * time.Second

// Client implements domain.Geocoder using the FCC Census Block API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    *time.Duration
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client used for requests. The client is
// copied, so a WithTimeout option never changes the caller's value.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = &d
	}
}

// WithRateLimit paces requests to at most rps per second. Values <= 0 disable pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records request durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates an FCC block lookup client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := http.Client{Timeout: defaultTimeout}
	if c.httpClient != nil {
		hc = *c.httpClient
	}
	if c.timeout != nil {
		hc.Timeout = *c.timeout
	}
	c.httpClient = &hc
	return c
}

// Lookup resolves one coordinate to its census block. It makes exactly one
// request and never retries; transport failures, non-2xx responses and
// unparseable bodies are returned as errors.
func (c *Client) Lookup(ctx context.Context, coord domain.Coordinate, verbose bool) (domain.Outcome, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Outcome{}, fmt.Errorf("fcc rate limiter: %w", err)
		}
	}

	reqURL, err := c.lookupURL(coord)
	if err != nil {
		return domain.Outcome{}, err
	}

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return domain.Outcome{}, err
	}

	return parseOutcome(body, coord, verbose)
}

func (c *Client) lookupURL(coord domain.Coordinate) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("format", "json")
	q.Set("latitude", coord.Latitude)
	q.Set("longitude", coord.Longitude)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.LookupDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("block lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fcc API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("fcc response", "url", fullURL, "bytes", len(body))
	return body, nil
}

func parseOutcome(body []byte, coord domain.Coordinate, verbose bool) (domain.Outcome, error) {
	var fccResp response
	if err := json.Unmarshal(body, &fccResp); err != nil {
		return domain.Outcome{}, fmt.Errorf("decode response: %w", err)
	}
	if fccResp.Status == nil {
		return domain.Outcome{}, fmt.Errorf("%w: no status field", domain.ErrMalformedResponse)
	}

	fips, err := firstBlockFIPS(fccResp.Block)
	if err != nil {
		return domain.Outcome{}, err
	}

	out := domain.Outcome{
		FIPS:      fips,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Status:    domain.Status(*fccResp.Status),
	}
	if verbose {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return domain.Outcome{}, fmt.Errorf("compact response: %w", err)
		}
		out.RawResponse = buf.Bytes()
	}
	return out, nil
}

// firstBlockFIPS extracts the block code from the Block field, which the API
// sends as an object, as an array of candidates, or not at all. Only the
// first candidate is considered.
func firstBlockFIPS(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '{':
		var b block
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		return b.FIPS, nil
	case '[':
		var blocks []block
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, fmt.Errorf("decode blocks: %w", err)
		}
		if len(blocks) == 0 {
			return nil, nil
		}
		return blocks[0].FIPS, nil
	default:
		return nil, fmt.Errorf("%w: unexpected Block value %s", domain.ErrMalformedResponse, raw)
	}
}

// parseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date relative to now. Unparseable or past values yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := at.Sub(now); d > 0 {
		return d.Round(time.Second)
	}
	return 0
}

// FCC API response types.

type response struct {
	Status *string         `json:"status"`
	Block  json.RawMessage `json:"Block"`
}

type block struct {
	FIPS *string `json:"FIPS"`
}
