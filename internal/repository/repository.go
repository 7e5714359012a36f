package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fliq/internal/models"
)

// Errors surfaced from the atomic ledger operations. Callers match them
// with errors.Is and translate them into client responses.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrMarketUnavailable   = errors.New("market unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// PlaceWagerParams is the unit of work for one wager placement. The
// Multiplier callback runs inside the transaction against the locked
// pool counts, so the captured multiplier always reflects the state the
// wager joined.
type PlaceWagerParams struct {
	UserID   string
	MarketID string
	Side     string
	Stake    decimal.Decimal

	Now             time.Time
	PlacementBuffer time.Duration

	Multiplier func(yesCount, noCount int64) float64
}

// SettleWagerParams transitions one wager to settled. Credit is the
// amount added to the user's balance (zero for losses, the stake for a
// push, round(stake*mult) for a win); PnL is added to total_pnl.
type SettleWagerParams struct {
	WagerID string
	UserID  string
	Win     bool
	PnL     decimal.Decimal
	Credit  decimal.Decimal
}

type Repository interface {
	// Users.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (*models.User, error)
	CreateUser(ctx context.Context, item *models.User) error
	ListTopUsers(ctx context.Context, limit int) ([]models.User, error)

	// Markets.
	CreateMarket(ctx context.Context, item *models.Market) error
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	ListMarketsByIDs(ctx context.Context, ids []string) ([]models.Market, error)
	// ListOpenMarkets returns unresolved markets ending after now+buffer,
	// soonest-ending first.
	ListOpenMarkets(ctx context.Context, now time.Time, buffer time.Duration) ([]models.Market, error)
	ListExpiredUnresolvedMarkets(ctx context.Context, now time.Time) ([]models.Market, error)
	// ListUnresolvedMarkets returns every unresolved market regardless
	// of end time, for the full admin sweep.
	ListUnresolvedMarkets(ctx context.Context) ([]models.Market, error)
	// ResolveMarket performs the guarded OPEN→RESOLVED transition.
	// It reports false when another trigger already resolved the market.
	ResolveMarket(ctx context.Context, marketID string, endPrice decimal.Decimal, outcome string) (bool, error)

	// Wagers.
	PlaceWager(ctx context.Context, params PlaceWagerParams) (*models.Wager, decimal.Decimal, error)
	ListUnsettledWagersByMarket(ctx context.Context, marketID string) ([]models.Wager, error)
	ListUnsettledWagersOnResolvedMarketsByUser(ctx context.Context, userID string) ([]models.Wager, error)
	ListWagersByUser(ctx context.Context, userID string, limit int) ([]models.Wager, error)
	// SettleWager transitions one wager to settled and applies the
	// balance/total_pnl delta in the same transaction. It reports false
	// when the wager was already settled (the no-op that makes
	// settlement idempotent under concurrent triggers).
	SettleWager(ctx context.Context, params SettleWagerParams) (bool, error)
}
