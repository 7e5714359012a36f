package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fliq/internal/models"
	"fliq/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

const txMaxAttempts = 3

// inTxRetry runs fn in a transaction, transparently retrying when
// postgres aborts it with a deadlock or serialization conflict.
func (s *Store) inTxRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
	}
	return err
}

func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected")
}

// --- users -------------------------------------------------------------

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var item models.User
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var item models.User
	err := s.db.WithContext(ctx).First(&item, "wallet = ?", wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTopUsers(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var items []models.User
	err := s.db.WithContext(ctx).
		Order("total_pnl desc, balance desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- markets -----------------------------------------------------------

func (s *Store) CreateMarket(ctx context.Context, item *models.Market) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	var item models.Market
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarketsByIDs(ctx context.Context, ids []string) ([]models.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenMarkets(ctx context.Context, now time.Time, buffer time.Duration) ([]models.Market, error) {
	var items []models.Market
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Where("end_time > ?", now.Add(buffer)).
		Order("end_time asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListExpiredUnresolvedMarkets(ctx context.Context, now time.Time) ([]models.Market, error) {
	var items []models.Market
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Where("end_time <= ?", now).
		Order("end_time asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUnresolvedMarkets(ctx context.Context) ([]models.Market, error) {
	var items []models.Market
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("end_time asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ResolveMarket is guarded by resolved=false so concurrent resolution
// attempts on the same market commit exactly one transition.
func (s *Store) ResolveMarket(ctx context.Context, marketID string, endPrice decimal.Decimal, outcome string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ? AND resolved = ?", marketID, false).
		Updates(map[string]any{
			"end_price": endPrice,
			"outcome":   outcome,
			"resolved":  true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- wagers ------------------------------------------------------------

// PlaceWager validates against current row state under FOR UPDATE locks
// and commits the wager insert, balance debit and pool increment as one
// unit. Locks are taken user-then-market everywhere so concurrent
// placements cannot deadlock on ordering.
func (s *Store) PlaceWager(ctx context.Context, params repository.PlaceWagerParams) (*models.Wager, decimal.Decimal, error) {
	var (
		placed     *models.Wager
		newBalance decimal.Decimal
	)
	err := s.inTxRetry(ctx, func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", params.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		var market models.Market
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&market, "id = ?", params.MarketID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrMarketUnavailable
		}
		if err != nil {
			return err
		}

		if !market.Open(params.Now, params.PlacementBuffer) {
			return repository.ErrMarketUnavailable
		}
		if user.Balance.LessThan(params.Stake) {
			return repository.ErrInsufficientBalance
		}

		mult := decimal.NewFromFloat(params.Multiplier(market.YesCount, market.NoCount))
		wager := &models.Wager{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			MarketID:   market.ID,
			Side:       params.Side,
			Stake:      params.Stake,
			PayoutMult: mult,
			CreatedAt:  params.Now,
		}
		if err := tx.Create(wager).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			UpdateColumn("balance", gorm.Expr("balance - ?", params.Stake)).Error; err != nil {
			return err
		}

		countCol := "yes_count"
		if params.Side == models.SideNo {
			countCol = "no_count"
		}
		if err := tx.Model(&models.Market{}).
			Where("id = ?", market.ID).
			UpdateColumn(countCol, gorm.Expr(countCol+" + 1")).Error; err != nil {
			return err
		}

		placed = wager
		newBalance = user.Balance.Sub(params.Stake)
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return placed, newBalance, nil
}

func (s *Store) ListUnsettledWagersByMarket(ctx context.Context, marketID string) ([]models.Wager, error) {
	var items []models.Wager
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND settled = ?", marketID, false).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUnsettledWagersOnResolvedMarketsByUser(ctx context.Context, userID string) ([]models.Wager, error) {
	var items []models.Wager
	err := s.db.WithContext(ctx).
		Joins("JOIN markets ON markets.id = wagers.market_id").
		Where("wagers.user_id = ? AND wagers.settled = ? AND markets.resolved = ?", userID, false, true).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListWagersByUser(ctx context.Context, userID string, limit int) ([]models.Wager, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var items []models.Wager
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SettleWager is guarded by settled=false; the wager flip and the user
// credit commit together or not at all. A missing user row rolls the
// wager back to unsettled so the next sweep retries it.
func (s *Store) SettleWager(ctx context.Context, params repository.SettleWagerParams) (bool, error) {
	settled := false
	err := s.inTxRetry(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Wager{}).
			Where("id = ? AND settled = ?", params.WagerID, false).
			Updates(map[string]any{
				"settled": true,
				"win":     params.Win,
				"pnl":     params.PnL,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already settled by a concurrent trigger.
			return nil
		}

		userRes := tx.Model(&models.User{}).
			Where("id = ?", params.UserID).
			Updates(map[string]any{
				"balance":   gorm.Expr("balance + ?", params.Credit),
				"total_pnl": gorm.Expr("total_pnl + ?", params.PnL),
			})
		if userRes.Error != nil {
			return userRes.Error
		}
		if userRes.RowsAffected == 0 {
			return repository.ErrUserNotFound
		}

		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}
