package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/metrics"
	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/retry"
)

// Endpoint is one router version the client can reach.
type Endpoint struct {
	Name string
	URL  *url.URL
}

// Client calls the old and new router versions with retry and rate limiting.
type Client struct {
	httpClient    *http.Client
	oldEP         Endpoint
	newEP         Endpoint
	useBaseTokens string
	policy        retry.Policy
	limiter       *rate.Limiter
	metrics       *metrics.Collectors
	logger        *logrus.Logger
}

// ClientConfig holds configuration for the router client
type ClientConfig struct {
	OldURL        string
	NewURL        string
	Timeout       time.Duration
	UseBaseTokens string  // forwarded as a query parameter when set
	RateLimitQPS  float64 // 0 disables rate limiting
	Policy        *retry.Policy
	Metrics       *metrics.Collectors
	Logger        *logrus.Logger
}

// NewClient creates a router client for both endpoints.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Policy == nil {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultRequestTimeout
	}

	oldURL, err := parseEndpoint(cfg.OldURL)
	if err != nil {
		return nil, fmt.Errorf("invalid old router url: %w", err)
	}
	newURL, err := parseEndpoint(cfg.NewURL)
	if err != nil {
		return nil, fmt.Errorf("invalid new router url: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), 1)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"old": oldURL.String(),
		"new": newURL.String(),
	}).Info("router client configured")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		oldEP:         Endpoint{Name: "old", URL: oldURL},
		newEP:         Endpoint{Name: "new", URL: newURL},
		useBaseTokens: strings.TrimSpace(cfg.UseBaseTokens),
		policy:        *cfg.Policy,
		limiter:       limiter,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// CallOld looks the request up on the old router.
func (c *Client) CallOld(ctx context.Context, req *models.SwapRequest) (*models.RouterResponse, error) {
	return c.Call(ctx, c.oldEP, req)
}

// CallNew looks the request up on the new router.
func (c *Client) CallNew(ctx context.Context, req *models.SwapRequest) (*models.RouterResponse, error) {
	return c.Call(ctx, c.newEP, req)
}

// Call issues one logical lookup against ep. Transient failures are retried
// until the policy budget runs out; malformed responses fail immediately.
func (c *Client) Call(ctx context.Context, ep Endpoint, req *models.SwapRequest) (*models.RouterResponse, error) {
	u := RequestURL(ep.URL, req, c.useBaseTokens)

	policy := c.policy
	policy.Classify = isTransient
	policy.Notify = func(err error, next time.Duration) {
		c.metrics.IncRetry(ep.Name)
		c.logger.WithFields(logrus.Fields{
			"endpoint":    ep.Name,
			"retry_after": fmt.Sprintf("%.1fs", next.Seconds()),
		}).WithError(err).Warn("failed to reach router, retrying")
	}

	start := time.Now()
	resp, err := retry.Run(ctx, &policy, func(ctx context.Context) (*models.RouterResponse, error) {
		return c.doRequest(ctx, ep, u)
	})
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveCall(ep.Name, "error", elapsed)
		return nil, fmt.Errorf("%s router call failed: %w", ep.Name, err)
	}
	c.metrics.ObserveCall(ep.Name, "ok", elapsed)
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, ep Endpoint, u string) (*models.RouterResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("accept", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientNetworkError{Endpoint: ep.Name, Err: err}
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, &TransientNetworkError{Endpoint: ep.Name, StatusCode: res.StatusCode, Body: body}
	}
	if readErr != nil {
		return nil, &TransientNetworkError{Endpoint: ep.Name, Err: fmt.Errorf("failed to read response: %w", readErr)}
	}

	var out models.RouterResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &MalformedResponseError{Endpoint: ep.Name, Body: body, Err: err}
	}
	return &out, nil
}

// RequestURL returns base with its query replaced by the encoded request.
// Both router versions receive exactly the same parameters.
func RequestURL(base *url.URL, req *models.SwapRequest, useBaseTokens string) string {
	q := url.Values{}
	q.Set(constants.ParamFromToken, req.FromToken)
	q.Set(constants.ParamFromTokenAddr, req.FromTokenAddr)
	q.Set(constants.ParamToToken, req.ToToken)
	q.Set(constants.ParamToTokenAddr, req.ToTokenAddr)
	q.Set(constants.ParamInAmount, req.InAmount)
	q.Set(constants.ParamFromDecimal, strconv.FormatUint(uint64(req.FromDecimal), 10))
	q.Set(constants.ParamToDecimal, strconv.FormatUint(uint64(req.ToDecimal), 10))
	if useBaseTokens != "" {
		q.Set(constants.ParamUseBaseTokens, useBaseTokens)
	}

	u := *base
	u.RawQuery = q.Encode()
	return u.String()
}
