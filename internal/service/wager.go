package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fliq/internal/config"
	"fliq/internal/models"
	"fliq/internal/odds"
	"fliq/internal/repository"
)

// WagerService is the ledger operation: it validates a stake and hands
// the atomic placement to the repository, which locks the user and
// market rows, captures the multiplier from the locked pool counts,
// inserts the wager, debits the balance and bumps the side count as a
// single unit.
type WagerService struct {
	Repo   repository.Repository
	Config config.WagerConfig
	Logger *zap.Logger
}

type PlacedWager struct {
	Wager      *models.Wager   `json:"wager"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// PlaceWager places a stake on one side of a market. A zero stake means
// "use the configured default" (the classic fixed swipe stake).
func (s *WagerService) PlaceWager(ctx context.Context, userID, marketID, side string, stake decimal.Decimal) (*PlacedWager, error) {
	side = strings.ToUpper(strings.TrimSpace(side))
	if side != models.SideYes && side != models.SideNo {
		return nil, ErrInvalidSide
	}

	if stake.IsZero() {
		stake = decimal.NewFromFloat(s.Config.DefaultStake)
	}
	if err := s.validateStake(stake); err != nil {
		return nil, err
	}

	wager, newBalance, err := s.Repo.PlaceWager(ctx, repository.PlaceWagerParams{
		UserID:          userID,
		MarketID:        marketID,
		Side:            side,
		Stake:           stake,
		Now:             time.Now().UTC(),
		PlacementBuffer: s.Config.PlacementBuffer,
		Multiplier: func(yesCount, noCount int64) float64 {
			return odds.Compute(yesCount, noCount).Multiplier(side)
		},
	})
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("wager placed",
			zap.String("wager_id", wager.ID),
			zap.String("market_id", marketID),
			zap.String("side", side),
			zap.String("stake", stake.String()),
			zap.String("payout_mult", wager.PayoutMult.String()),
		)
	}
	return &PlacedWager{Wager: wager, NewBalance: newBalance}, nil
}

func (s *WagerService) validateStake(stake decimal.Decimal) error {
	if stake.Sign() <= 0 {
		return ErrInvalidStake
	}
	if s.Config.MinStake > 0 && stake.LessThan(decimal.NewFromFloat(s.Config.MinStake)) {
		return ErrInvalidStake
	}
	if s.Config.MaxStake > 0 && stake.GreaterThan(decimal.NewFromFloat(s.Config.MaxStake)) {
		return ErrInvalidStake
	}
	return nil
}
