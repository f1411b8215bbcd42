// Package external is the boundary between reminder logic and third-party
// APIs (messaging providers, the calendar provider and its OAuth token
// endpoint). Outbound HTTP goes through BaseClient, which adds a circuit
// breaker, correlation headers and error mapping.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"clinicremind/internal/types"
)

// BaseClient wraps an *http.Client with a circuit breaker. It never retries:
// a failed call is reported to the caller, which decides whether the next
// scheduler tick picks the work up again.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	userAgent   string
	failureCode types.ErrorCode
}

// BreakerSettings returns the breaker configuration shared by all providers:
// open after more than five consecutive failures, probe again after 30s.
func BreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
}

// NewBaseClient creates a BaseClient. failureCode is the error code reported
// for network errors and 5xx responses, so callers can tell messaging outages
// from calendar outages.
func NewBaseClient(httpClient *http.Client, breakerName string, failureCode types.ErrorCode, userAgent string) *BaseClient {
	return NewBaseClientWithBreaker(
		httpClient,
		gobreaker.NewCircuitBreaker[*http.Response](BreakerSettings(breakerName)),
		failureCode,
		userAgent,
	)
}

// NewBaseClientWithBreaker uses a caller-provided breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], failureCode types.ErrorCode, userAgent string) *BaseClient {
	return &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		userAgent:   userAgent,
		failureCode: failureCode,
	}
}

// Do executes req through the breaker.
//
// Responses below 500 other than 429 are returned as-is and the caller closes
// the body. Network errors, timeouts, 429 and 5xx responses come back as a
// *types.AppError with the body already closed.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := types.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if id := types.GetRunID(ctx); id != "" {
		req.Header.Set("X-Run-ID", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}
	if resp != nil {
		resp.Body.Close()
	}
	return nil, c.mapError(resp, err)
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(c.failureCode, "circuit breaker is open; upstream service unavailable", err)
	}
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err).
				WithDetails(map[string]any{"status": resp.StatusCode})
		}
		return types.NewAppError(c.failureCode, fmt.Sprintf("upstream returned %d", resp.StatusCode), err).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}
	return types.NewAppError(c.failureCode, "upstream request failed", err)
}
