package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/civichq/resultwatch/pkg/utils"
	"go.uber.org/zap"
)

// Kind classifies a fetch failure after all attempts are exhausted.
type Kind int

const (
	Timeout Kind = iota
	ConnectionError
	OtherError
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case ConnectionError:
		return "connection_error"
	default:
		return "other_error"
	}
}

// Error is the typed failure returned when every attempt against the
// upstream failed. Callers treat it as "skip this fetch, retry next cycle".
type Error struct {
	Kind     Kind
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (%s): %v", e.URL, e.Attempts, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// retryStatuses are the upstream responses worth a backed-off retry.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Opts is the set of options for a new Client.
type Opts struct {
	BaseURL        string
	APIKey         string
	Origin         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retries        int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	PoolSize       int
	Logger         *zap.Logger
}

// Client issues GET requests to the upstream API with connection reuse,
// bounded retry and backoff. A connection-level failure discards the pooled
// transport so the next attempt starts from a fresh TCP/TLS context.
type Client struct {
	base    string
	apiKey  string
	origin  string
	retries int

	connectTimeout time.Duration
	readTimeout    time.Duration
	backoffBase    time.Duration
	backoffMax     time.Duration
	poolSize       int

	mu     sync.Mutex
	client *http.Client

	logger *zap.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New creates a new Client with the given options.
func New(o Opts) *Client {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 90 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = 2
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 60 * time.Second
	}
	if o.PoolSize < 10 {
		o.PoolSize = 10
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	c := &Client{
		base:           o.BaseURL,
		apiKey:         o.APIKey,
		origin:         o.Origin,
		retries:        o.Retries,
		connectTimeout: o.ConnectTimeout,
		readTimeout:    o.ReadTimeout,
		backoffBase:    o.BackoffBase,
		backoffMax:     o.BackoffMax,
		poolSize:       o.PoolSize,
		logger:         o.Logger,
		sleep:          time.Sleep,
	}
	c.client = c.newHTTPClient()
	return c
}

// newHTTPClient builds the pooled transport. Connect and read timeouts are
// distinct: the dialer bounds connection setup, the client bounds the whole
// request.
func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   c.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        c.poolSize,
		MaxIdleConnsPerHost: c.poolSize,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   c.readTimeout,
	}
}

// resetPool discards the current transport and replaces it with a fresh one,
// forcing new TCP/TLS connections on the next attempt.
func (c *Client) resetPool() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	c.client = c.newHTTPClient()
}

func (c *Client) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// stampHeaders sets the auth and anti-cache headers on every outgoing call.
// x-api-rt carries a fresh millisecond timestamp so caching proxies cannot
// serve stale payloads.
func (c *Client) stampHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-api-rt", strconv.FormatInt(time.Now().UnixMilli(), 10))
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Referer", c.origin+"/")
	}
}

// GetJSON fetches base/endpoint with the given query params and decodes the
// response body into out. All attempts exhausted yields a typed *Error.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.base + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	body, err := c.getWithRetry(ctx, target)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: OtherError, URL: target, Attempts: 1, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Download fetches an absolute URL (a result-sheet document) and returns the
// raw bytes.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	return c.getWithRetry(ctx, rawURL)
}

func (c *Client) getWithRetry(ctx context.Context, target string) ([]byte, error) {
	attempts := c.retries + 1
	var lastKind Kind = OtherError
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: Timeout, URL: target, Attempts: attempt, Err: ctx.Err()}
		default:
		}

		body, kind, err := c.doOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		lastKind, lastErr = kind, err

		if attempt == attempts-1 {
			break
		}

		var delay time.Duration
		switch kind {
		case Timeout:
			// Linear backoff on timeouts.
			delay = time.Duration(attempt+1) * 3 * time.Second
		case ConnectionError:
			// Fresh pool plus a longer linear pause.
			c.resetPool()
			delay = time.Duration(attempt+1) * 5 * time.Second
		default:
			if statusRetryable(err) {
				delay = c.expBackoff(attempt)
			} else {
				delay = 2 * time.Second
			}
		}
		c.logger.Warn("Fetch attempt failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		c.sleep(delay)
	}

	return nil, &Error{Kind: lastKind, URL: target, Attempts: attempts, Err: lastErr}
}

func (c *Client) expBackoff(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	if delay > c.backoffMax {
		delay = c.backoffMax
	}
	return delay
}

// statusError marks a non-2xx response so the retry ladder can tell a
// retryable upstream status from an arbitrary failure.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d", e.code) }

func statusRetryable(err error) bool {
	var se *statusError
	return errors.As(err, &se) && retryStatuses[se.code]
}

func (c *Client) doOnce(ctx context.Context, target string) ([]byte, Kind, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, OtherError, err
	}
	c.stampHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, classifyTransportError(err), err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return nil, OtherError, &statusError{code: resp.StatusCode}
	}

	body, readErr := io.ReadAll(resp.Body)
	if cerr := utils.DrainAndClose(resp.Body); cerr != nil && readErr == nil {
		readErr = cerr
	}
	if readErr != nil {
		return nil, classifyTransportError(readErr), readErr
	}
	return body, OtherError, nil
}

func classifyTransportError(err error) Kind {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Timeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ConnectionError
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return ConnectionError
	}
	return OtherError
}

// SetSleep overrides the retry pause. Tests only.
func (c *Client) SetSleep(fn func(time.Duration)) { c.sleep = fn }
