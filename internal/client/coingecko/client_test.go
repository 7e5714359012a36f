package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fliq/internal/config"
)

const btcBody = `{"id":"bitcoin","image":{"small":"https://img/btc.png"},"market_data":{"current_price":{"usd":91234.56}}}`

func testConfig(baseURL string) config.OracleConfig {
	return config.OracleConfig{
		BaseURL:          baseURL,
		Timeout:          2 * time.Second,
		RetryDelay:       10 * time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
		CacheTTL:         50 * time.Millisecond,
		RatePerSec:       1000,
		RateBurst:        1000,
	}
}

func TestGetDetails_ParsesPriceAndImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(btcBody))
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	d, err := c.GetDetails(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d.Price.String() != "91234.56" {
		t.Fatalf("price=%s want 91234.56", d.Price)
	}
	if d.ImageURL != "https://img/btc.png" {
		t.Fatalf("image=%q", d.ImageURL)
	}
}

func TestGetDetails_SentinelOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	d, err := c.GetDetails(context.Background(), "bitcoin")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
	if !d.Price.Equal(SentinelPrice) {
		t.Fatalf("price=%s want sentinel", d.Price)
	}
}

func TestGetDetails_RetriesOnceOn429(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(btcBody))
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	if _, err := c.GetDetails(context.Background(), "bitcoin"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("calls=%d want 2", got)
	}
}

func TestGetDetails_RateLimitExhaustedAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	if _, err := c.GetDetails(context.Background(), "bitcoin"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailuresAndFailsFast(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	for i := 0; i < 3; i++ {
		if _, err := c.GetDetails(context.Background(), "bitcoin"); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	if !c.CircuitOpen() {
		t.Fatalf("breaker should be open after 3 failures")
	}
	before := atomic.LoadInt64(&calls)

	_, err := c.GetDetails(context.Background(), "bitcoin")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err=%v want ErrCircuitOpen", err)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ErrCircuitOpen should match ErrUnavailable")
	}
	if atomic.LoadInt64(&calls) != before {
		t.Fatalf("open circuit still reached the network")
	}
}

func TestBreaker_TrialCallAfterCooldownResets(t *testing.T) {
	var fail int64 = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt64(&fail) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(btcBody))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BreakerCooldown = 20 * time.Millisecond
	cfg.CacheTTL = time.Nanosecond
	c := New(srv.Client(), cfg, nil)

	for i := 0; i < 3; i++ {
		c.GetDetails(context.Background(), "bitcoin")
	}
	if !c.CircuitOpen() {
		t.Fatalf("breaker should be open")
	}

	atomic.StoreInt64(&fail, 0)
	time.Sleep(30 * time.Millisecond)

	if _, err := c.GetDetails(context.Background(), "bitcoin"); err != nil {
		t.Fatalf("trial call after cooldown failed: %v", err)
	}
	if c.CircuitOpen() {
		t.Fatalf("breaker should have reset after success")
	}
}

func TestGetDetails_ServesFromCacheWithinTTL(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(btcBody))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CacheTTL = time.Minute
	c := New(srv.Client(), cfg, nil)

	for i := 0; i < 5; i++ {
		if _, err := c.GetPrice(context.Background(), "bitcoin"); err != nil {
			t.Fatalf("err=%v", err)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("calls=%d want 1 (cache should absorb repeats)", got)
	}
}

func TestGetDetails_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(btcBody))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	c := New(srv.Client(), cfg, nil)
	if _, err := c.GetDetails(context.Background(), "bitcoin"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestGetDetails_RejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"image":{"small":""},"market_data":{"current_price":{"usd":0}}}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), testConfig(srv.URL), nil)
	d, err := c.GetDetails(context.Background(), "bitcoin")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
	if !d.Price.Equal(SentinelPrice) {
		t.Fatalf("zero feed price must map to sentinel, got %s", d.Price)
	}
}
