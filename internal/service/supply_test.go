package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fliq/internal/assets"
	"fliq/internal/config"
)

func testSupplyConfig() config.SupplyConfig {
	return config.SupplyConfig{
		DurationsMin:  []int{1, 3, 5},
		TargetPerPair: 2,
		MinTotal:      15,
		MinAssets:     3,
		EndingBuffer:  10 * time.Second,
	}
}

func allPrices() map[string]decimal.Decimal {
	prices := map[string]decimal.Decimal{}
	for i, coin := range assets.Majors() {
		prices[coin.CoinGeckoID] = decimal.NewFromInt(int64(1000 * (i + 1)))
	}
	return prices
}

func TestEnsureSupplyTopsUpEveryPair(t *testing.T) {
	repo := newStubRepo()
	oracle := &stubOracle{prices: allPrices()}
	svc := &SupplyService{Repo: repo, Oracle: oracle, Config: testSupplyConfig()}

	created, err := svc.EnsureSupply(context.Background())
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	// 9 coins x 3 durations x target 2.
	want := len(assets.Majors()) * 3 * 2
	if created != want {
		t.Fatalf("created = %d, want %d", created, want)
	}

	now := time.Now().UTC()
	open, _ := repo.ListOpenMarkets(context.Background(), now, 0)
	perPair := map[string]int{}
	for _, m := range open {
		perPair[pairKey(m.Symbol, m.DurationMin)]++
		if m.StartPrice.Sign() <= 0 {
			t.Fatalf("market %s created with start price %s", m.ID, m.StartPrice)
		}
		if m.EndTime.Sub(m.StartTime) != time.Duration(m.DurationMin)*time.Minute {
			t.Fatalf("market %s span = %s, want %dm", m.ID, m.EndTime.Sub(m.StartTime), m.DurationMin)
		}
		if !strings.Contains(m.Title, "go ↑ in") {
			t.Fatalf("market title = %q", m.Title)
		}
	}
	for pair, n := range perPair {
		if n != 2 {
			t.Fatalf("pair %s has %d markets, want 2", pair, n)
		}
	}

	// Details are fetched once per coin per run, not once per market.
	if oracle.calls != len(assets.Majors()) {
		t.Fatalf("oracle calls = %d, want %d", oracle.calls, len(assets.Majors()))
	}

	// A pair already at target gets nothing on the next run.
	oracle.calls = 0
	again, err := svc.EnsureSupply(context.Background())
	if err != nil {
		t.Fatalf("EnsureSupply second run: %v", err)
	}
	if again != 0 {
		t.Fatalf("second run created %d, want 0", again)
	}
}

func TestEnsureSupplySkipsUnpricedCoins(t *testing.T) {
	repo := newStubRepo()
	// Only bitcoin has a price; every other coin's lookup fails and must
	// not yield a market.
	oracle := &stubOracle{prices: map[string]decimal.Decimal{
		"bitcoin": decimal.NewFromInt(50000),
	}}
	cfg := testSupplyConfig()
	cfg.MinTotal = 0
	svc := &SupplyService{Repo: repo, Oracle: oracle, Config: cfg}

	created, err := svc.EnsureSupply(context.Background())
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if created != 6 { // 1 coin x 3 durations x 2
		t.Fatalf("created = %d, want 6", created)
	}
	open, _ := repo.ListOpenMarkets(context.Background(), time.Now().UTC(), 0)
	for _, m := range open {
		if m.Symbol != "bitcoin" {
			t.Fatalf("market created for unpriced coin %s", m.Symbol)
		}
	}
}

func TestEnsureSupplyEmergencyFill(t *testing.T) {
	repo := newStubRepo()
	oracle := &stubOracle{prices: allPrices()}
	cfg := testSupplyConfig()
	// Per-pair target already met by config, but the floor forces extra
	// markets from the top coins.
	cfg.TargetPerPair = 1
	cfg.DurationsMin = []int{1}
	cfg.MinTotal = 15
	svc := &SupplyService{Repo: repo, Oracle: oracle, Config: cfg}

	created, err := svc.EnsureSupply(context.Background())
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if created < 15 {
		t.Fatalf("created = %d, want at least the floor 15", created)
	}
}

func TestEnsureSupplyEmergencyGivesUpWhenOracleDown(t *testing.T) {
	repo := newStubRepo()
	oracle := &stubOracle{} // every lookup fails
	svc := &SupplyService{Repo: repo, Oracle: oracle, Config: testSupplyConfig()}

	created, err := svc.EnsureSupply(context.Background())
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d with oracle down, want 0", created)
	}
}

func TestOrderedCoinsPrefersMissingAssets(t *testing.T) {
	cfg := testSupplyConfig()
	svc := &SupplyService{Config: cfg}

	// Below the diversity floor: unlisted coins come first.
	ordered := svc.orderedCoins(map[string]struct{}{"bitcoin": {}, "ethereum": {}})
	if ordered[0].Symbol == "bitcoin" || ordered[0].Symbol == "ethereum" {
		t.Fatalf("first coin = %s, want an unlisted one", ordered[0].Symbol)
	}
	last := ordered[len(ordered)-1].Symbol
	if last != "bitcoin" && last != "ethereum" {
		t.Fatalf("last coin = %s, want a listed one", last)
	}

	// At or above the floor the priority order is untouched.
	ordered = svc.orderedCoins(map[string]struct{}{"bitcoin": {}, "ethereum": {}, "solana": {}})
	if ordered[0].Symbol != assets.Majors()[0].Symbol {
		t.Fatalf("first coin = %s, want priority order preserved", ordered[0].Symbol)
	}
}
