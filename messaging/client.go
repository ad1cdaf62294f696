// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/netutil"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/lib/secret"
)

// DefaultRateLimitRetries is how often a rate-limited request is
// retried before the error is returned.
const DefaultRateLimitRetries = 3

// ClientConfig holds the parameters for NewClient.
type ClientConfig struct {
	// HomeserverURL is the base URL, e.g. "https://matrix.example.org".
	HomeserverURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// RateLimitRetries defaults to DefaultRateLimitRetries. Negative
	// disables retries.
	RateLimitRetries int

	// Clock times rate-limit backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is an unauthenticated connection to one homeserver.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient validates the configuration and creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must be http or https", config.HomeserverURL)
	}

	client := &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: config.HTTPClient,
		retries:    config.RateLimitRetries,
		clock:      config.Clock,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.retries == 0 {
		client.retries = DefaultRateLimitRetries
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// Session creates an authenticated session. The session takes
// ownership of token and closes it in Session.Close.
func (c *Client) Session(userID ref.UserID, token *secret.Buffer) *Session {
	return &Session{client: c, userID: userID, accessToken: token}
}

// CloseIdleConnections drops pooled connections, forcing fresh ones
// after a network failure.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// doRequest sends one JSON request and returns the response body. A
// non-2xx response becomes a *MatrixError. M_LIMIT_EXCEEDED responses
// are retried after the server's delay.
func (c *Client) doRequest(ctx context.Context, method, path string, token *secret.Buffer, requestBody any, query url.Values) ([]byte, error) {
	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: encoding request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		body, err := c.doOnce(ctx, method, path, token, encoded, query)
		var matrixErr *MatrixError
		if err == nil || !errors.As(err, &matrixErr) || matrixErr.Code != ErrCodeLimitExceeded || attempt >= c.retries {
			return body, err
		}
		delay := matrixErr.RetryAfter()
		c.logger.Warn("rate limited by homeserver",
			"method", method,
			"path", path,
			"retry_after", delay,
			"attempt", attempt+1,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(delay):
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, token *secret.Buffer, encoded []byte, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: creating request: %w", err)
	}
	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		request.Header.Set("Authorization", "Bearer "+token.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: reading response to %s %s: %w", method, path, err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil || matrixErr.Code == "" {
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode
	return nil, &matrixErr
}

// pathOf joins the prefix with escaped segments.
func pathOf(prefix string, segments ...string) string {
	var builder strings.Builder
	builder.WriteString(prefix)
	for _, segment := range segments {
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String()
}
