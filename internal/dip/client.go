package dip

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 16 << 20

// ErrNotFound is returned when the API answers 404 for a single resource.
var ErrNotFound = errors.New("dip: not found")

// APIError is returned for any non-2xx response.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dip %s: unexpected status %d: %s", e.Endpoint, e.Status, e.Body)
}

// ClientOptions for the DIP client.
type ClientOptions struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	// Zero keeps the retryablehttp defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	Logger *logrus.Logger

	// Observe, if set, is called once per request with the endpoint name and
	// an outcome of "ok", "http_error" or "transport_error".
	Observe func(endpoint, outcome string)
}

// Client is a small wrapper around retryablehttp for the Bundestag DIP API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	inner   *retryablehttp.Client
	observe func(endpoint, outcome string)
}

// NewClient creates a new Client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid DIP base URL %q", opts.BaseURL)
	}

	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	r.HTTPClient.Timeout = opts.Timeout
	if opts.RetryWaitMin > 0 {
		r.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		r.RetryWaitMax = opts.RetryWaitMax
	}
	// Hand the final response back instead of a generic "giving up" error so
	// non-2xx statuses can be reported as APIError.
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		r.Logger = leveledLogger{opts.Logger.WithField("component", "dip")}
	} else {
		r.Logger = nil
	}

	observe := opts.Observe
	if observe == nil {
		observe = func(string, string) {}
	}

	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		inner:   r,
		observe: observe,
	}, nil
}

// ListVorgaenge fetches a single page of proceedings.
func (c *Client) ListVorgaenge(ctx context.Context, q Query) (VorgangPage, error) {
	var page VorgangPage
	if err := c.get(ctx, "vorgang", "/vorgang", q.values(), &page); err != nil {
		return VorgangPage{}, err
	}
	return page, nil
}

// ListAll follows the cursor until the API stops advancing it or maxPages
// pages were fetched. maxPages <= 0 means no limit.
func (c *Client) ListAll(ctx context.Context, q Query, maxPages int) ([]Vorgang, error) {
	var all []Vorgang
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		page, err := c.ListVorgaenge(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Documents...)
		if len(page.Documents) == 0 || page.Cursor == "" || page.Cursor == q.Cursor {
			break
		}
		q.Cursor = page.Cursor
	}
	return all, nil
}

// GetVorgang fetches a single proceeding by ID.
func (c *Client) GetVorgang(ctx context.Context, id string) (Vorgang, error) {
	var v Vorgang
	err := c.get(ctx, "vorgang_by_id", "/vorgang/"+id, url.Values{"format": {"json"}}, &v)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return Vorgang{}, fmt.Errorf("%w: vorgang %s", ErrNotFound, id)
		}
		return Vorgang{}, err
	}
	return v, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dip %s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		c.observe(endpoint, "transport_error")
		return fmt.Errorf("dip %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(endpoint, "transport_error")
		return fmt.Errorf("dip %s: read body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(endpoint, "http_error")
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.observe(endpoint, "http_error")
		return fmt.Errorf("dip %s: decode response: %w", endpoint, err)
	}
	c.observe(endpoint, "ok")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(f)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
