package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fliq/internal/assets"
	"fliq/internal/client/coingecko"
	"fliq/internal/models"
	"fliq/internal/repository"
)

// PriceOracle is the slice of the CoinGecko client the engines need.
type PriceOracle interface {
	GetPrice(ctx context.Context, coinID string) (decimal.Decimal, error)
	GetDetails(ctx context.Context, coinID string) (coingecko.Details, error)
}

// ResolutionService sweeps expired-but-unresolved markets and performs
// the guarded OPEN→RESOLVED transition. It is safe to run from any
// number of overlapping triggers: the transition commits once and every
// later attempt is a no-op.
type ResolutionService struct {
	Repo       repository.Repository
	Oracle     PriceOracle
	Settlement *SettlementService
	Logger     *zap.Logger
}

// ResolveReport is the per-market record returned by the admin sweep.
type ResolveReport struct {
	MarketID   string           `json:"marketId"`
	Symbol     string           `json:"symbol"`
	Status     string           `json:"status"` // resolved | already_resolved | skipped
	Reason     string           `json:"reason,omitempty"`
	Outcome    string           `json:"outcome,omitempty"`
	StartPrice decimal.Decimal  `json:"startPrice"`
	EndPrice   *decimal.Decimal `json:"endPrice,omitempty"`
	Settled    int              `json:"settledWagers"`
}

// ResolveExpired resolves every expired market it can price and returns
// how many transitions this invocation won.
func (s *ResolutionService) ResolveExpired(ctx context.Context) (int, error) {
	reports, err := s.ResolveExpiredDetailed(ctx)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, r := range reports {
		if r.Status == "resolved" {
			resolved++
		}
	}
	return resolved, nil
}

// ResolveExpiredDetailed is ResolveExpired with a per-market report,
// used by the admin endpoint.
func (s *ResolutionService) ResolveExpiredDetailed(ctx context.Context) ([]ResolveReport, error) {
	now := time.Now().UTC()
	markets, err := s.Repo.ListExpiredUnresolvedMarkets(ctx, now)
	if err != nil {
		return nil, err
	}

	reports := make([]ResolveReport, 0, len(markets))
	for _, market := range markets {
		reports = append(reports, s.resolveOne(ctx, market))
	}
	return reports, nil
}

// ResolveAllReport summarizes the full admin sweep over every
// unresolved market, expired or not.
type ResolveAllReport struct {
	ResolvedCount int             `json:"resolvedCount"`
	TotalMarkets  int             `json:"totalMarkets"`
	Results       []ResolveReport `json:"results"`
}

// ResolveAll walks every unresolved market, however old, and resolves
// the expired ones. Markets still running are reported as skipped.
func (s *ResolutionService) ResolveAll(ctx context.Context) (ResolveAllReport, error) {
	now := time.Now().UTC()
	markets, err := s.Repo.ListUnresolvedMarkets(ctx)
	if err != nil {
		return ResolveAllReport{}, err
	}

	report := ResolveAllReport{TotalMarkets: len(markets)}
	for _, market := range markets {
		if !market.Expired(now) {
			report.Results = append(report.Results, ResolveReport{
				MarketID:   market.ID,
				Symbol:     market.Symbol,
				StartPrice: market.StartPrice,
				Status:     "skipped",
				Reason:     "not expired yet",
			})
			continue
		}
		r := s.resolveOne(ctx, market)
		if r.Status == "resolved" {
			report.ResolvedCount++
		}
		report.Results = append(report.Results, r)
	}
	return report, nil
}

func (s *ResolutionService) resolveOne(ctx context.Context, market models.Market) ResolveReport {
	report := ResolveReport{
		MarketID:   market.ID,
		Symbol:     market.Symbol,
		StartPrice: market.StartPrice,
	}

	price, err := s.Oracle.GetPrice(ctx, assets.CoinGeckoID(market.Symbol))
	if err != nil || price.Sign() <= 0 {
		// Leave the market pending; the next sweep retries it. A market
		// is never resolved with a sentinel or otherwise unusable price.
		report.Status = "skipped"
		report.Reason = "oracle unavailable"
		if s.Logger != nil {
			s.Logger.Warn("resolution skipped, oracle unavailable",
				zap.String("market_id", market.ID),
				zap.String("symbol", market.Symbol),
				zap.Error(err),
			)
		}
		return report
	}

	outcome := outcomeFor(market.StartPrice, price)
	transitioned, err := s.Repo.ResolveMarket(ctx, market.ID, price, outcome)
	if err != nil {
		report.Status = "skipped"
		report.Reason = err.Error()
		if s.Logger != nil {
			s.Logger.Warn("market resolution failed",
				zap.String("market_id", market.ID),
				zap.Error(err),
			)
		}
		return report
	}

	if transitioned {
		report.Status = "resolved"
		report.Outcome = outcome
		report.EndPrice = &price
		if s.Logger != nil {
			s.Logger.Info("market resolved",
				zap.String("market_id", market.ID),
				zap.String("symbol", market.Symbol),
				zap.String("outcome", outcome),
				zap.String("start_price", market.StartPrice.String()),
				zap.String("end_price", price.String()),
			)
		}
	} else {
		// A concurrent trigger won the race. Still run settlement below:
		// the winner may have died between resolving and settling, and
		// settlement on settled wagers is a no-op anyway.
		report.Status = "already_resolved"
	}

	if s.Settlement != nil {
		result, err := s.Settlement.SettleMarket(ctx, market.ID)
		if err != nil {
			// Settlement failure never rolls back the resolution; the
			// unsettled wagers are picked up by the next sweep.
			if s.Logger != nil {
				s.Logger.Warn("settlement after resolution failed",
					zap.String("market_id", market.ID),
					zap.Error(err),
				)
			}
		} else {
			report.Settled = result.Settled
		}
	}
	return report
}

// outcomeFor applies the resolution rule: end above start is YES, below
// is NO, exactly equal is PUSH.
func outcomeFor(startPrice, endPrice decimal.Decimal) string {
	switch endPrice.Cmp(startPrice) {
	case 1:
		return models.OutcomeYes
	case -1:
		return models.OutcomeNo
	default:
		return models.OutcomePush
	}
}
