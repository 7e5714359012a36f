package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fliq/internal/assets"
	"fliq/internal/config"
	"fliq/internal/models"
	"fliq/internal/repository"
)

// SupplyService keeps a target count and asset diversity of open
// markets by creating new ones from fresh oracle prices. It only ever
// adds markets, so overlapping runs are a waste, not a hazard, and no
// guard beyond the oracle sentinel check is needed.
type SupplyService struct {
	Repo   repository.Repository
	Oracle PriceOracle
	Config config.SupplyConfig
	Logger *zap.Logger
}

// EnsureSupply tops up open markets per (coin, duration) pair and
// enforces the minimum total, preferring coins not currently listed
// when asset diversity is low. Candidates whose oracle lookup failed
// are skipped; a sentinel price is never persisted as a start price.
func (s *SupplyService) EnsureSupply(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	durations := s.Config.DurationsMin
	if len(durations) == 0 {
		durations = []int{1, 3, 5}
	}
	targetPerPair := s.Config.TargetPerPair
	if targetPerPair <= 0 {
		targetPerPair = 2
	}

	open, err := s.Repo.ListOpenMarkets(ctx, now, s.Config.EndingBuffer)
	if err != nil {
		return 0, err
	}

	pairCount := map[string]int{}
	openSymbols := map[string]struct{}{}
	for _, m := range open {
		pairCount[pairKey(m.Symbol, m.DurationMin)]++
		openSymbols[m.Symbol] = struct{}{}
	}

	created := 0
	details := map[string]*models.Market{} // nil entry marks a failed oracle lookup
	for _, coin := range s.orderedCoins(openSymbols) {
		for _, duration := range durations {
			need := targetPerPair - pairCount[pairKey(coin.Symbol, duration)]
			for i := 0; i < need; i++ {
				template, ok := s.marketTemplate(ctx, coin, details)
				if !ok {
					break
				}
				if err := s.createFrom(ctx, template, coin, duration, now, i); err != nil {
					if s.Logger != nil {
						s.Logger.Warn("market creation failed",
							zap.String("symbol", coin.Symbol),
							zap.Int("duration_min", duration),
							zap.Error(err),
						)
					}
					continue
				}
				created++
			}
		}
	}

	total := len(open) + created
	if minTotal := s.Config.MinTotal; total < minTotal {
		extra := s.createEmergency(ctx, now, durations, minTotal-total, details)
		created += extra
	}

	if created > 0 && s.Logger != nil {
		s.Logger.Info("market supply replenished",
			zap.Int("created", created),
			zap.Int("open_before", len(open)),
		)
	}
	return created, nil
}

// orderedCoins puts coins without an open market first so low diversity
// self-corrects before crowded assets get topped up further.
func (s *SupplyService) orderedCoins(openSymbols map[string]struct{}) []assets.Coin {
	coins := assets.Majors()
	if s.Config.MinAssets > 0 && len(openSymbols) >= s.Config.MinAssets {
		return coins
	}
	ordered := make([]assets.Coin, 0, len(coins))
	for _, c := range coins {
		if _, ok := openSymbols[c.Symbol]; !ok {
			ordered = append(ordered, c)
		}
	}
	for _, c := range coins {
		if _, ok := openSymbols[c.Symbol]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// marketTemplate fetches (once per coin per run) the oracle details and
// caches the prototype market carrying price, logo and raw snapshot.
func (s *SupplyService) marketTemplate(ctx context.Context, coin assets.Coin, cache map[string]*models.Market) (*models.Market, bool) {
	if template, ok := cache[coin.Symbol]; ok {
		return template, template != nil
	}

	d, err := s.Oracle.GetDetails(ctx, coin.CoinGeckoID)
	if err != nil || d.Price.Sign() <= 0 {
		cache[coin.Symbol] = nil
		if s.Logger != nil {
			s.Logger.Warn("supply skipped coin, oracle unavailable",
				zap.String("symbol", coin.Symbol),
				zap.Error(err),
			)
		}
		return nil, false
	}

	logo := coin.LogoURL
	if d.ImageURL != "" {
		logo = d.ImageURL
	}
	raw, _ := json.Marshal(d)
	template := &models.Market{
		Symbol:     coin.Symbol,
		StartPrice: d.Price,
		LogoURL:    &logo,
		OracleRaw:  datatypes.JSON(raw),
	}
	cache[coin.Symbol] = template
	return template, true
}

func (s *SupplyService) createFrom(ctx context.Context, template *models.Market, coin assets.Coin, durationMin int, now time.Time, stagger int) error {
	// Stagger sibling markets slightly so they do not all expire at the
	// same instant.
	startTime := now.Add(time.Duration(stagger) * 5 * time.Second)
	market := &models.Market{
		Symbol:      template.Symbol,
		Title:       fmt.Sprintf("Will %s go ↑ in %dm?", coin.Ticker, durationMin),
		DurationMin: durationMin,
		StartTime:   startTime,
		EndTime:     startTime.Add(time.Duration(durationMin) * time.Minute),
		StartPrice:  template.StartPrice,
		LogoURL:     template.LogoURL,
		OracleRaw:   template.OracleRaw,
		CreatedAt:   now,
	}
	return s.Repo.CreateMarket(ctx, market)
}

// createEmergency fills the remaining gap with short markets on the
// most liquid coins.
func (s *SupplyService) createEmergency(ctx context.Context, now time.Time, durations []int, need int, details map[string]*models.Market) int {
	coins := assets.Majors()
	if len(coins) > 3 {
		coins = coins[:3]
	}
	if len(durations) > 2 {
		durations = durations[:2]
	}

	created := 0
	for created < need {
		progressed := false
		for _, coin := range coins {
			for _, duration := range durations {
				if created >= need {
					return created
				}
				template, ok := s.marketTemplate(ctx, coin, details)
				if !ok {
					continue
				}
				if err := s.createFrom(ctx, template, coin, duration, now, created); err != nil {
					continue
				}
				created++
				progressed = true
			}
		}
		if !progressed {
			// Every candidate failed (oracle down); give up this pass.
			return created
		}
	}
	return created
}

func pairKey(symbol string, durationMin int) string {
	return fmt.Sprintf("%s/%d", symbol, durationMin)
}
