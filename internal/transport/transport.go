// Package transport executes outbound HTTP calls for the advisory stages.
//
// Every call is a single attempt: there is no retry or backoff, a failed
// request goes straight to the caller's fallback path. An optional circuit
// breaker per upstream turns a run of failures into an immediate error so
// a dead upstream does not cost every request its full timeout.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// maxBody caps how much of an upstream response is read into memory.
const maxBody = 16 << 20

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrServerError   = errors.New("server error")
	ErrUnexpected    = errors.New("unexpected status code")
	ErrCircuitOpen   = errors.New("circuit breaker open")
	ErrNoHTTPClient  = errors.New("http client not configured")
	ErrBodyTooLarge  = errors.New("response body too large")
	errUnexpectedRes = errors.New("unexpected result type from circuit breaker")
)

// Client wraps an *http.Client with an optional circuit breaker.
type Client struct {
	name    string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

// New creates a Client for one upstream. When breaker is false requests go
// directly to the HTTP client.
func New(name string, hc *http.Client, breaker bool) *Client {
	c := &Client{name: name, http: hc}
	if breaker {
		c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: upstreamHealthy,
		})
	}
	return c
}

// upstreamHealthy reports whether err says nothing bad about the upstream.
// A caller that cancels its own request must not trip the breaker for
// everyone else sharing the client.
func upstreamHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Name returns the upstream name the client was created for.
func (c *Client) Name() string {
	return c.name
}

// Do sends req once with ctx attached. Any status outside 2xx is returned as
// an error and the body is closed; on success the caller owns resp.Body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, ErrNoHTTPClient
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	if c.circuit == nil {
		return c.send(req)
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.send(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", c.name, ErrCircuitOpen, err)
		}
		return nil, err
	}
	resp, ok := result.(*http.Response)
	if !ok {
		return nil, errUnexpectedRes
	}
	return resp, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpected, resp.StatusCode)
	}
	return resp, nil
}

// ReadBody reads and closes the response body, refusing oversized payloads.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// DecodeJSON decodes the response body into v and closes it.
func DecodeJSON(resp *http.Response, v any) error {
	body, err := ReadBody(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
