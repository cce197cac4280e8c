//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/version"
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs single-attempt GET requests against the upstream.
type Client struct {
	// http sends the requests.
	http Doer
	// callTimeout bounds Fetch calls; streams are not bounded.
	callTimeout time.Duration
	// userAgent is sent with every request.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout for Fetch calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// NewClient returns a client using http.DefaultClient.
func NewClient(opts ...Option) *Client {
	client := &Client{
		http:      http.DefaultClient,
		userAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Fetch downloads the whole body of rawURL within the call timeout.
// The status code is returned even when it is not a success.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.Stream(callCtx, rawURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		status := 0
		if response != nil {
			status = response.StatusCode
		}

		return nil, status, err
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, fmt.Errorf("%w: read %s: %w", release.ErrNetwork, rawURL, err)
	}

	return body, response.StatusCode, nil
}

// Stream issues a GET and returns the response with an unread body.
// On a non-2xx status the response is returned alongside the error so the
// caller can close it.
func (c *Client) Stream(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %w", release.ErrNetwork, rawURL, err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", release.ErrNetwork, rawURL, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return response, fmt.Errorf("%w: GET %s: unexpected status %s", release.ErrNetwork, rawURL, response.Status)
	}

	return response, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
