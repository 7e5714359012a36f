package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fliq/internal/models"
	"fliq/internal/repository"
)

// SettlementService converts a resolved market's outcome into per-wager
// win/loss/push results and balance credits. Every wager settles in its
// own guarded transaction, so re-running settlement for a market whose
// wagers are already settled affects zero rows. That is what lets cron,
// page loads and admin calls all fire settlement concurrently.
type SettlementService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type SettlementResult struct {
	Settled int      `json:"settled"`
	Failed  []string `json:"failed,omitempty"`
}

// SettleMarket settles every open wager on a resolved market. A wager
// that fails (e.g. its user row is gone) is reported and skipped;
// siblings still settle.
func (s *SettlementService) SettleMarket(ctx context.Context, marketID string) (SettlementResult, error) {
	market, err := s.Repo.GetMarketByID(ctx, marketID)
	if err != nil {
		return SettlementResult{}, err
	}
	if market == nil {
		return SettlementResult{}, fmt.Errorf("settle market %s: %w", marketID, repository.ErrMarketUnavailable)
	}
	if !market.Resolved || market.Outcome == nil {
		return SettlementResult{}, fmt.Errorf("settle market %s: not resolved", marketID)
	}

	wagers, err := s.Repo.ListUnsettledWagersByMarket(ctx, marketID)
	if err != nil {
		return SettlementResult{}, err
	}

	result := SettlementResult{}
	for _, wager := range wagers {
		ok, err := s.settleOne(ctx, *market.Outcome, wager)
		if err != nil {
			result.Failed = append(result.Failed, wager.ID)
			if s.Logger != nil {
				s.Logger.Warn("wager settlement failed",
					zap.String("wager_id", wager.ID),
					zap.String("market_id", marketID),
					zap.Error(err),
				)
			}
			continue
		}
		if ok {
			result.Settled++
		}
	}

	if result.Settled > 0 && s.Logger != nil {
		s.Logger.Info("market settled",
			zap.String("market_id", marketID),
			zap.String("outcome", *market.Outcome),
			zap.Int("wagers", result.Settled),
			zap.Int("failed", len(result.Failed)),
		)
	}
	return result, nil
}

// SettleUserPending settles only the given user's wagers whose markets
// have already resolved. Used by the history read so a user always sees
// a balance that reflects every decided market.
func (s *SettlementService) SettleUserPending(ctx context.Context, userID string) (int, error) {
	wagers, err := s.Repo.ListUnsettledWagersOnResolvedMarketsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(wagers) == 0 {
		return 0, nil
	}

	marketIDs := make([]string, 0, len(wagers))
	seen := map[string]struct{}{}
	for _, w := range wagers {
		if _, ok := seen[w.MarketID]; ok {
			continue
		}
		seen[w.MarketID] = struct{}{}
		marketIDs = append(marketIDs, w.MarketID)
	}
	markets, err := s.Repo.ListMarketsByIDs(ctx, marketIDs)
	if err != nil {
		return 0, err
	}
	outcomeByMarket := make(map[string]string, len(markets))
	for _, m := range markets {
		if m.Resolved && m.Outcome != nil {
			outcomeByMarket[m.ID] = *m.Outcome
		}
	}

	settled := 0
	for _, wager := range wagers {
		outcome, ok := outcomeByMarket[wager.MarketID]
		if !ok {
			continue
		}
		done, err := s.settleOne(ctx, outcome, wager)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("pending wager settlement failed",
					zap.String("wager_id", wager.ID),
					zap.Error(err),
				)
			}
			continue
		}
		if done {
			settled++
		}
	}
	return settled, nil
}

func (s *SettlementService) settleOne(ctx context.Context, outcome string, wager models.Wager) (bool, error) {
	win, pnl, credit := settleTerms(outcome, wager)
	return s.Repo.SettleWager(ctx, repository.SettleWagerParams{
		WagerID: wager.ID,
		UserID:  wager.UserID,
		Win:     win,
		PnL:     pnl,
		Credit:  credit,
	})
}

// settleTerms computes the outcome of one wager. PUSH refunds the stake
// with zero pnl; a win credits round(stake*mult); a loss credits nothing.
func settleTerms(outcome string, wager models.Wager) (win bool, pnl, credit decimal.Decimal) {
	if outcome == models.OutcomePush {
		return true, decimal.Zero, wager.Stake
	}
	win = wager.Side == outcome
	if win {
		credit = wager.Stake.Mul(wager.PayoutMult).Round(0)
		pnl = credit.Sub(wager.Stake)
		return win, pnl, credit
	}
	return false, wager.Stake.Neg(), decimal.Zero
}
