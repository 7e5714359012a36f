// Package coingecko is the price oracle client. Outcomes and market
// start prices both come from here, so the client never fabricates a
// quote: every failure path returns an error plus the sentinel price.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fliq/internal/config"
)

var (
	// ErrUnavailable wraps every transport-level failure: timeout,
	// non-2xx status, rate-limit exhaustion, undecodable body.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrCircuitOpen is returned without a network attempt while the
	// breaker cools down. Callers treat it like any oracle failure.
	ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrUnavailable)
)

// SentinelPrice is returned alongside errors so a caller that drops the
// error can still not mistake the result for a real quote.
var SentinelPrice = decimal.NewFromInt(-1)

// Details is a point-in-time quote with the coin's logo.
type Details struct {
	CoinID    string          `json:"coin_id"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type cachedDetails struct {
	details   Details
	fetchedAt time.Time
}

// Client talks to the CoinGecko REST API with a per-call timeout, a
// single retry on HTTP 429, an outbound rate limiter, a consecutive-
// failure circuit breaker and a few-second quote cache. All breaker and
// cache state is owned by the instance; nothing is process-global.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.OracleConfig
	limiter    *rate.Limiter

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	cache     map[string]cachedDetails
}

func New(httpClient *http.Client, cfg config.OracleConfig, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coingecko.com/api/v3"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1500 * time.Millisecond
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 3
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 3 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 0.5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 3
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		cache:      map[string]cachedDetails{},
	}
}

// GetPrice returns the current USD price for a CoinGecko coin id.
func (c *Client) GetPrice(ctx context.Context, coinID string) (decimal.Decimal, error) {
	d, err := c.GetDetails(ctx, coinID)
	if err != nil {
		return SentinelPrice, err
	}
	return d.Price, nil
}

// GetDetails returns price and logo for a coin. On any failure the
// returned Details carries SentinelPrice together with the error.
func (c *Client) GetDetails(ctx context.Context, coinID string) (Details, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return sentinelDetails(coinID), fmt.Errorf("%w: empty coin id", ErrUnavailable)
	}

	if d, ok := c.cachedFresh(coinID); ok {
		return d, nil
	}

	if err := c.breakerGate(); err != nil {
		return sentinelDetails(coinID), err
	}

	d, err := c.fetchDetails(ctx, coinID)
	if err != nil {
		c.recordFailure(err)
		return sentinelDetails(coinID), err
	}
	c.recordSuccess(d)
	return d, nil
}

func (c *Client) fetchDetails(ctx context.Context, coinID string) (Details, error) {
	path := "/coins/" + url.PathEscape(coinID) +
		"?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false&sparkline=false"
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return Details{}, err
	}

	var parsed struct {
		Image struct {
			Small string `json:"small"`
		} `json:"image"`
		MarketData struct {
			CurrentPrice map[string]json.Number `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Details{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	usd, ok := parsed.MarketData.CurrentPrice["usd"]
	if !ok {
		return Details{}, fmt.Errorf("%w: no usd price for %s", ErrUnavailable, coinID)
	}
	price, err := decimal.NewFromString(usd.String())
	if err != nil || price.Sign() <= 0 {
		return Details{}, fmt.Errorf("%w: bad usd price %q for %s", ErrUnavailable, usd.String(), coinID)
	}
	return Details{
		CoinID:    coinID,
		Price:     price,
		ImageURL:  parsed.Image.Small,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// doRequest performs one rate-limited GET with the per-call timeout,
// retrying once after a fixed delay when the feed answers 429.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	retried := false
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		body, status, err := c.doOnce(ctx, path)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests && !retried {
			retried = true
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: http %d", ErrUnavailable, status)
		}
		return body, nil
	}
}

func (c *Client) doOnce(ctx context.Context, path string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) cachedFresh(coinID string) (Details, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[coinID]
	if !ok || time.Since(entry.fetchedAt) > c.cfg.CacheTTL {
		return Details{}, false
	}
	return entry.details, true
}

func (c *Client) breakerGate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.openUntil.IsZero() && time.Now().Before(c.openUntil) {
		return ErrCircuitOpen
	}
	return nil
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.cfg.BreakerThreshold && (c.openUntil.IsZero() || time.Now().After(c.openUntil)) {
		c.openUntil = time.Now().Add(c.cfg.BreakerCooldown)
		if c.logger != nil {
			c.logger.Warn("oracle circuit opened",
				zap.Int("consecutive_failures", c.failures),
				zap.Duration("cooldown", c.cfg.BreakerCooldown),
				zap.Error(err),
			)
		}
	}
}

func (c *Client) recordSuccess(d Details) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recovered := c.failures >= c.cfg.BreakerThreshold
	c.failures = 0
	c.openUntil = time.Time{}
	c.cache[d.CoinID] = cachedDetails{details: d, fetchedAt: d.FetchedAt}
	if recovered && c.logger != nil {
		c.logger.Info("oracle recovered", zap.String("coin_id", d.CoinID))
	}
}

// CircuitOpen reports whether the breaker currently rejects calls.
func (c *Client) CircuitOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.openUntil.IsZero() && time.Now().Before(c.openUntil)
}

// RunRecoveryProbe pings the feed while the circuit is open so callers
// regain the oracle as soon as it is healthy again instead of waiting
// for the full cooldown.
func (c *Client) RunRecoveryProbe(ctx context.Context) error {
	interval := c.cfg.ProbeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if !c.CircuitOpen() {
				continue
			}
			if _, err := c.doRequest(ctx, "/ping"); err != nil {
				continue
			}
			c.mu.Lock()
			c.failures = 0
			c.openUntil = time.Time{}
			c.mu.Unlock()
			if c.logger != nil {
				c.logger.Info("oracle circuit reset by recovery probe")
			}
		}
	}
}

func sentinelDetails(coinID string) Details {
	return Details{CoinID: coinID, Price: SentinelPrice}
}
