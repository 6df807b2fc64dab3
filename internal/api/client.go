package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryableSentinel is the server's generic transient-failure message.
// Any 5xx carrying a different message is a real error and is not retried.
const retryableSentinel = "Internal server error"

// Defaults for the retry policy and per-request timeout.
const (
	DefaultMaxTries       = 4
	DefaultRetryDelay     = 250 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
)

// Error is a classified API failure.
type Error struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string { return e.Message }

// Logger matches the structured logger used across the CLI.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Client performs JSON API calls with timeout, bounded retry for transient
// errors, and structured error translation.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	maxTries   int
	retryDelay time.Duration
	sleep      func(time.Duration)
	logger     Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAuthToken sets the access token sent on every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the attempt bound and inter-attempt delay.
func WithRetry(maxTries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.retryDelay = delay
	}
}

// WithSleep substitutes the inter-attempt sleep. Tests use a recorder so
// retries run without wall-clock delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		maxTries:   DefaultMaxTries,
		retryDelay: DefaultRetryDelay,
		sleep:      time.Sleep,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET and decodes the JSON response into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put performs a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do runs one logical API call: up to maxTries attempts with a fixed delay
// in between, retrying only errors classified as transient.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}

		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Retryable && attempt < c.maxTries {
			c.logger.Debug("retrying api call", "method", method, "path", path, "attempt", attempt, "error", apiErr.Message)
			c.sleep(c.retryDelay)
			continue
		}
		return err
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("X-Access-Token", c.authToken)
	}
	// Minutes east of UTC; the server uses it for display only.
	_, offset := time.Now().Zone()
	req.Header.Set("X-Timezone-Offset", strconv.Itoa(offset/60))

	c.logger.Debug("api call", "method", method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return &Error{
			Status:  resp.StatusCode,
			Code:    "apiProtocolError",
			Message: "did not get back JSON from the API",
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		// A body that fails to decode still yields a usable error below.
		json.Unmarshal(raw, &serverErr)
		return &Error{
			Status:    resp.StatusCode,
			Code:      serverErr.Code,
			Message:   serverErr.Message,
			Retryable: serverErr.Message == retryableSentinel,
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}

// classifyTransportError maps network-level failures onto the retry policy:
// timeouts and DNS resolution failures are transient, everything else is not.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: "apiTimeout", Message: "API request timed out", Retryable: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: "apiTimeout", Message: "API request timed out", Retryable: true}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Code: "dnsFailure", Message: "could not resolve API host", Retryable: true}
	}
	return fmt.Errorf("api request failed: %w", err)
}
