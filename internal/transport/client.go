// Package transport implements the HTTP access layer: OAuth-token refresh,
// FIFO throttling, retry-with-backoff, result caching, and the two listing
// paginators. Cross-cutting policies compose around a single raw-request
// function in the fixed order cache -> throttle -> retry -> raw request.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	stockxerrors "github.com/cyberoby/stockx/errors"
	"github.com/cyberoby/stockx/internal/config"
)

// clientState is the client's token lifecycle state machine.
type clientState int32

const (
	stateUninitialized clientState = iota
	stateAuthenticating
	stateReady
	stateClosed
)

// credentials is the atomically-swapped bearer token + api key pair.
type credentials struct {
	accessToken string
	apiKey      string
}

// Client is the rate-limited, retried, OAuth-authenticated HTTP access layer
// that every resource endpoint wrapper (package api) calls through.
type Client struct {
	cfg    config.AuthConfig
	apiCfg config.APIConfig
	http   *resty.Client
	logger *slog.Logger

	throttler *Throttler
	retry     RetryPolicy

	state atomic.Int32
	creds atomic.Pointer[credentials]

	refreshFailures atomic.Int32
	stopRefresh     context.CancelFunc
	refreshDone     chan struct{}
}

// New constructs a Client and starts its background token-refresh goroutine.
// The refresh goroutine keeps running even while individual requests fail,
// per the component design's state-machine contract.
func New(authCfg config.AuthConfig, apiCfg config.APIConfig, throttleCfg config.ThrottleConfig, retryCfg config.RetryConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(apiCfg.BaseURL).
		SetTimeout(apiCfg.Timeout).
		SetRetryCount(0). // retry policy below owns retries, not resty
		SetHeader("Content-Type", "application/json")

	c := &Client{
		cfg:         authCfg,
		apiCfg:      apiCfg,
		http:        httpClient,
		logger:      logger.With("component", "transport"),
		throttler:   NewThrottler(throttleCfg.MinInterval),
		retry: RetryPolicy{
			MaxAttempts:  retryCfg.MaxAttempts,
			InitialDelay: retryCfg.InitialDelay,
			Timeout:      retryCfg.Timeout,
		},
		refreshDone: make(chan struct{}),
	}
	c.state.Store(int32(stateAuthenticating))

	ctx, cancel := context.WithCancel(context.Background())
	c.stopRefresh = cancel
	go c.refreshLoop(ctx)

	return c
}

// Close stops the refresh goroutine and transitions the client to closed.
// Subsequent requests fail with NotInitialized.
func (c *Client) Close() {
	c.state.Store(int32(stateClosed))
	c.stopRefresh()
	<-c.refreshDone
}

// refreshLoop owns the current credentials for the client's lifetime. It
// obtains a token via the OAuth refresh_token grant, publishes it atomically,
// sleeps the refresh interval, and repeats. On repeated failure it drops the
// client back to "authenticating" so new requests observe NotInitialized
// rather than a request doomed to fail with a stale token. If the loop
// panics, the panic is recovered and the client drops to "uninitialized".
func (c *Client) refreshLoop(ctx context.Context) {
	defer close(c.refreshDone)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("token refresh goroutine panicked", "panic", r)
			c.state.Store(int32(stateUninitialized))
		}
	}()

	authClient := resty.New().SetTimeout(c.apiCfg.Timeout)

	for {
		token, err := c.fetchToken(ctx, authClient)
		if err != nil {
			n := c.refreshFailures.Add(1)
			c.logger.Error("token refresh failed", "error", err, "consecutive_failures", n)
			if n >= 3 {
				c.state.Store(int32(stateAuthenticating))
			}
		} else {
			c.refreshFailures.Store(0)
			c.creds.Store(&credentials{accessToken: token, apiKey: c.cfg.APIKey})
			c.state.Store(int32(stateReady))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.refreshInterval(err)):
		}
	}
}

// refreshInterval returns the normal refresh interval on success, or a short
// retry backoff after a failed refresh attempt.
func (c *Client) refreshInterval(err error) time.Duration {
	if err != nil {
		return 5 * time.Second
	}
	return c.cfg.RefreshInterval
}

func (c *Client) fetchToken(ctx context.Context, authClient *resty.Client) (string, error) {
	var body struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := authClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {c.cfg.ClientID},
			"client_secret": {c.cfg.ClientSecret},
			"audience":      {c.cfg.Audience},
			"refresh_token": {c.cfg.RefreshToken},
		}.Encode()).
		SetResult(&body).
		Post(c.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("refresh token request: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", stockxerrors.NewRequestError(resp.StatusCode(), errorMessageFrom(resp.Body()))
	}
	return body.AccessToken, nil
}

func (c *Client) ready() error {
	switch clientState(c.state.Load()) {
	case stateReady:
		return nil
	case stateUninitialized:
		return &stockxerrors.NotInitialized{Reason: "client never authenticated"}
	case stateClosed:
		return &stockxerrors.NotInitialized{Reason: "client is closed"}
	default: // authenticating: short grace period
		for i := 0; i < 20; i++ {
			time.Sleep(50 * time.Millisecond)
			if clientState(c.state.Load()) == stateReady {
				return nil
			}
		}
		return &stockxerrors.NotInitialized{Reason: "client still authenticating"}
	}
}

func dropAbsent(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// do is the single point where the throttle/retry decorators compose around
// one raw resty call, per the fixed composition order; caching sits above
// this, in the api wrappers that own a *Cache.
func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body any, out any) error {
	if err := c.ready(); err != nil {
		return err
	}

	raw, err := c.throttler.Do(ctx, func(ctx context.Context) (any, error) {
		return c.retry.Do(ctx, func(ctx context.Context) (any, error) {
			return c.rawRequest(ctx, method, endpoint, params, body, out)
		})
	})
	_ = raw
	return err
}

func (c *Client) rawRequest(ctx context.Context, method, endpoint string, params map[string]string, body any, out any) (any, error) {
	creds := c.creds.Load()
	if creds == nil {
		return nil, &stockxerrors.NotInitialized{Reason: "no credentials yet"}
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+creds.accessToken).
		SetHeader("x-api-key", creds.apiKey).
		SetHeader("X-Request-ID", uuid.NewString())

	if len(params) > 0 {
		req = req.SetQueryParams(dropAbsent(params))
	}
	if body != nil {
		req = req.SetBody(body)
	}
	if out != nil {
		req = req.SetResult(out)
	}

	var resp *resty.Response
	var err error
	switch strings.ToUpper(method) {
	case "GET":
		resp, err = req.Get(endpoint)
	case "POST":
		resp, err = req.Post(endpoint)
	case "PUT":
		resp, err = req.Put(endpoint)
	case "PATCH":
		resp, err = req.Patch(endpoint)
	case "DELETE":
		resp, err = req.Delete(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, stockxerrors.NewRequestError(resp.StatusCode(), errorMessageFrom(resp.Body()))
	}
	return out, nil
}

// errorMessageFrom extracts the server's errorMessage field from a non-2xx
// JSON body, falling back to the raw body when it isn't shaped that way.
func errorMessageFrom(body []byte) string {
	var parsed struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ErrorMessage != "" {
		return parsed.ErrorMessage
	}
	return string(body)
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	return c.do(ctx, "GET", endpoint, params, nil, out)
}

// Post issues a POST request with a JSON body, decoding the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body any, out any) error {
	return c.do(ctx, "POST", endpoint, nil, body, out)
}

// Put issues a PUT request with a JSON body, decoding the response into out.
func (c *Client) Put(ctx context.Context, endpoint string, body any, out any) error {
	return c.do(ctx, "PUT", endpoint, nil, body, out)
}

// Patch issues a PATCH request with a JSON body, decoding the response into out.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, out any) error {
	return c.do(ctx, "PATCH", endpoint, nil, body, out)
}

// Delete issues a DELETE request, decoding the response into out if non-nil.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, "DELETE", endpoint, nil, nil, out)
}

