// Package resilience wraps outbound HTTP calls to fare providers with retry,
// circuit-breaker and rate-limit handling. Fare APIs throttle aggressively,
// so 429 responses are retried with backoff (honoring Retry-After) without
// counting against the circuit breaker.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker and registry naming.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 30 seconds (fare lookups are slow).
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts. Default: 4.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval. Default: 1s,
	// doubling per attempt, which matches typical fare-API pacing.
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval. Default: 10 seconds.
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultBreakerConfig.
	CircuitBreaker *BreakerConfig

	// Registry receives per-request health updates (optional).
	Registry *Registry
}

// DefaultClientConfig returns sensible defaults for a fare-provider client.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         30 * time.Second,
		MaxRetries:      4,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		CircuitBreaker:  &breaker,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient HTTP client and registers it with the
// configured registry, if any.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		breakerCfg = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewBreaker[*http.Response](breakerCfg),
		config:     cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Do executes an HTTP request with circuit breaker protection and retries.
// 5xx and network errors are retried with exponential backoff and count
// against the circuit breaker; 429 responses are retried (honoring the
// Retry-After header when present) but do not trip the breaker, and a
// *RateLimitError is returned once those retries are exhausted. Returns
// immediately with ErrCircuitOpen if the circuit breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req.Context(), req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return backoff.Permanent(bodyErr)
			}
			attempt.Body = body
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, doErr := c.httpClient.Do(attempt)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx trips the breaker; everything else is a breaker success.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				c.recordFailure(ErrCircuitOpen)
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			c.recordFailure(err)
			return err
		}

		// Throttled: retry outside the breaker so quota exhaustion does not
		// open the circuit for an otherwise healthy provider. The body is
		// closed here, so the response is never stashed for the caller.
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			c.recordFailure(&RateLimitError{RetryAfter: retryAfter})
			if retryAfter > 0 {
				// Honor the provider's pacing before the next attempt.
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return &RateLimitError{RetryAfter: retryAfter}
		}

		lastResp = resp
		c.recordSuccess()
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		// Exhausted on 429s: surface the rate limit rather than a response
		// whose body has already been closed.
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			return nil, rateErr
		}
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}
	return lastResp, nil
}

func (c *Client) recordSuccess() {
	if c.config.Registry != nil {
		c.config.Registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.config.Registry != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
	}
}

// BreakerState returns the current state of the circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the current counts of the circuit breaker.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// RateLimitError represents an HTTP 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limited by provider"
}

// parseRetryAfter parses a Retry-After header expressed in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
