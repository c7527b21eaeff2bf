package cbr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sig-0/cbrates/metrics"
	"github.com/sig-0/cbrates/storage/types"
)

// DefaultURL is the CBR daily rates endpoint, templated with a dd.mm.yyyy date
const DefaultURL = "https://www.cbr.ru/scripts/XML_daily.asp?date_req=%s"

const (
	defaultTimeout = time.Second * 30
	defaultRetries = 2
	defaultBackoff = time.Millisecond * 500

	// maxBodySize caps the feed document read into memory
	maxBodySize = 4 << 20
)

// Client fetches the CBR daily rates document
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	url     string
	timeout time.Duration
	retries uint64
	backoff time.Duration
}

// NewClient creates a new CBR feed client.
// The URL must contain a single %s verb for the date
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		url:     url,
		timeout: defaultTimeout,
		retries: defaultRetries,
		backoff: defaultBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the feed URL for the given date
func (c *Client) URL(date time.Time) string {
	return fmt.Sprintf(c.url, date.Format(types.DateLayout))
}

// Fetch fetches and parses the feed document for the given date.
// Transport failures and 5xx responses are retried; exhausting the retries,
// or any other non-2xx response, yields a KindFetch error
func (c *Client) Fetch(ctx context.Context, date time.Time) (*Document, error) {
	var (
		url  = c.URL(date)
		body []byte
	)

	base := c.backoff
	if base <= 0 {
		base = time.Millisecond
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(base))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.get(ctx, url)
		if err != nil {
			c.logger.Debug(
				"feed request failed",
				"url", url,
				"err", err,
			)

			return err
		}

		body = b

		return nil
	})
	if err != nil {
		c.metrics.FeedRequest("error")

		c.logger.Error(
			"unable to fetch data from the CBR feed",
			"url", url,
			"err", err,
		)

		return nil, types.NewError(types.KindFetch, fmt.Sprintf("unable to fetch %s", url), err)
	}

	doc, err := Parse(body)
	if err != nil {
		c.metrics.FeedRequest("parse_error")

		c.logger.Error(
			"unable to parse the CBR feed",
			"url", url,
			"err", err,
		)

		return nil, err
	}

	c.metrics.FeedRequest("ok")

	c.logger.Debug(
		"fetched daily rates",
		"date", doc.Date.Format(types.DateLayout),
		"currencies", doc.Len(),
	)

	return doc, nil
}

// get executes a single GET request, bounded by the client timeout,
// marking retryable failures
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancelFn context.CancelFunc

		ctx, cancelFn = context.WithTimeout(ctx, c.timeout)
		defer cancelFn()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create new GET request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("unable to execute GET request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("invalid status code received: %d", resp.StatusCode))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("unable to read response body: %w", err))
	}

	return body, nil
}
