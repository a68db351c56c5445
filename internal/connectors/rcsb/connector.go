package rcsb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.RecordSource = (*Connector)(nil)

const (
	// Type is the source type identifier.
	Type = "rcsb"

	// DefaultBaseURL serves full MMTF records by PDB ID.
	DefaultBaseURL = "https://mmtf.rcsb.org/v1.0/full"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second

	// MaxBodySize caps a single downloaded record.
	MaxBodySize = 512 << 20
)

// Metadata keys set on downloaded records.
const (
	MetaURL = "url"
)

// Connector downloads structures by ID.
type Connector struct {
	ids        []string
	baseURL    string
	client     *http.Client
	limiter    *RateLimiter
	maxRetries int
	retryDelay time.Duration
	closed     atomic.Bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithBaseURL overrides the download endpoint.
func WithBaseURL(u string) Option {
	return func(c *Connector) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) { c.client = client }
}

// WithRate sets the proactive request rate per second.
func WithRate(perSecond float64) Option {
	return func(c *Connector) { c.limiter = NewRateLimiter(perSecond) }
}

// WithRetries sets the retry budget and initial retry delay.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Connector) {
		c.maxRetries = max(0, n)
		c.retryDelay = delay
	}
}

// New creates a connector for the given structure IDs.
func New(ids []string, opts ...Option) *Connector {
	c := &Connector{
		ids:        normaliseIDs(ids),
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    NewRateLimiter(DefaultRate),
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normaliseIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// IDs returns the structure IDs this connector fetches.
func (c *Connector) IDs() []string {
	return append([]string(nil), c.ids...)
}

// URL returns the download URL for id.
func (c *Connector) URL(id string) string {
	return c.baseURL + "/" + strings.ToUpper(id)
}

// Records downloads every configured ID in order. Failed downloads are
// reported as RecordErrors and do not stop the stream.
func (c *Connector) Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	recordsCh := make(chan domain.RawRecord)
	errsCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errsCh)

		if c.closed.Load() {
			errsCh <- domain.ErrSourceClosed
			return
		}
		for _, id := range c.ids {
			rec, err := c.Fetch(ctx, id)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				select {
				case errsCh <- &driven.RecordError{ID: id, Err: err}:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case recordsCh <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return recordsCh, errsCh
}

// Fetch downloads a single structure. The content is returned as served,
// usually gzip-compressed.
func (c *Connector) Fetch(ctx context.Context, id string) (domain.RawRecord, error) {
	if c.closed.Load() {
		return domain.RawRecord{}, domain.ErrSourceClosed
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return domain.RawRecord{}, fmt.Errorf("%w: empty structure ID", domain.ErrInvalidInput)
	}
	url := c.URL(id)

	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.RawRecord{}, fmt.Errorf("rate limit wait: %w", err)
		}

		body, retryAt, err := c.get(ctx, url)
		if err == nil {
			return domain.RawRecord{
				ID:       id,
				Content:  body,
				Metadata: map[string]any{MetaURL: url},
			}, nil
		}
		if retryAt.IsZero() || attempt >= c.maxRetries {
			return domain.RawRecord{}, err
		}

		wait := max(delay, time.Until(retryAt))
		logger.Debug("Retrying %s in %s after: %v", id, wait, err)
		c.limiter.Backoff(time.Now().Add(wait))
		delay *= 2
	}
}

// get performs one request. A non-zero retryAt marks err as transient.
func (c *Connector) get(ctx context.Context, url string) ([]byte, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: build request: %v", domain.ErrSource, err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, time.Time{}, ctx.Err()
		}
		return nil, time.Now(), fmt.Errorf("%w: %s: %v", domain.ErrSource, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		now := time.Now()
		retryAt, hasHeader := RetryAfter(resp, now)
		if resp.StatusCode == http.StatusTooManyRequests {
			if !hasHeader {
				retryAt = now
			}
			return nil, retryAt, &RateLimitError{RetryAt: retryAt}
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, URL: url}
		if retryable(resp.StatusCode) {
			if !hasHeader {
				retryAt = now
			}
			return nil, retryAt, apiErr
		}
		return nil, time.Time{}, apiErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, time.Now(), fmt.Errorf("%w: read %s: %v", domain.ErrSource, url, err)
	}
	if len(body) > MaxBodySize {
		return nil, time.Time{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrSource, url, MaxBodySize)
	}
	return body, time.Time{}, nil
}

// Close stops further downloads.
func (c *Connector) Close() error {
	c.closed.Store(true)
	c.client.CloseIdleConnections()
	return nil
}
