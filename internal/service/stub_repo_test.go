package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fliq/internal/client/coingecko"
	"fliq/internal/models"
	"fliq/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. It mirrors the guarded-transition semantics of
// the real store (resolved=false / settled=false gates) so idempotency
// tests exercise the same behavior.
type stubRepo struct {
	mu      sync.Mutex
	users   map[string]*models.User
	markets map[string]*models.Market
	wagers  map[string]*models.Wager
	seq     int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:   map[string]*models.User{},
		markets: map[string]*models.Market{},
		wagers:  map[string]*models.Wager{},
	}
}

func (s *stubRepo) addUser(id string, balance int64) *models.User {
	u := &models.User{ID: id, Wallet: "w-" + id, Balance: decimal.NewFromInt(balance)}
	s.users[id] = u
	return u
}

func (s *stubRepo) addMarket(id, symbol string, startPrice int64, endTime time.Time) *models.Market {
	m := &models.Market{
		ID:         id,
		Symbol:     symbol,
		Title:      "Will " + symbol + " go ↑?",
		StartTime:  endTime.Add(-time.Minute),
		EndTime:    endTime,
		StartPrice: decimal.NewFromInt(startPrice),
	}
	s.markets[id] = m
	return m
}

func (s *stubRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) GetUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Wallet == wallet {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, item *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[item.ID] = item
	return nil
}

func (s *stubRepo) ListTopUsers(ctx context.Context, limit int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubRepo) CreateMarket(ctx context.Context, item *models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		s.seq++
		item.ID = fmt.Sprintf("m-%d", s.seq)
	}
	cp := *item
	s.markets[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *stubRepo) ListMarketsByIDs(ctx context.Context, ids []string) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, id := range ids {
		if m, ok := s.markets[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubRepo) ListOpenMarkets(ctx context.Context, now time.Time, buffer time.Duration) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if !m.Resolved && m.EndTime.After(now.Add(buffer)) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubRepo) ListExpiredUnresolvedMarkets(ctx context.Context, now time.Time) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if !m.Resolved && !now.Before(m.EndTime) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubRepo) ListUnresolvedMarkets(ctx context.Context) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if !m.Resolved {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubRepo) ResolveMarket(ctx context.Context, marketID string, endPrice decimal.Decimal, outcome string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok || m.Resolved {
		return false, nil
	}
	price := endPrice
	m.EndPrice = &price
	m.Outcome = &outcome
	m.Resolved = true
	return true, nil
}

func (s *stubRepo) PlaceWager(ctx context.Context, params repository.PlaceWagerParams) (*models.Wager, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[params.UserID]
	if !ok {
		return nil, decimal.Zero, repository.ErrUserNotFound
	}
	market, ok := s.markets[params.MarketID]
	if !ok {
		return nil, decimal.Zero, repository.ErrMarketUnavailable
	}
	if !market.Open(params.Now, params.PlacementBuffer) {
		return nil, decimal.Zero, repository.ErrMarketUnavailable
	}
	if user.Balance.LessThan(params.Stake) {
		return nil, decimal.Zero, repository.ErrInsufficientBalance
	}

	s.seq++
	wager := &models.Wager{
		ID:         fmt.Sprintf("wager-%d", s.seq),
		UserID:     user.ID,
		MarketID:   market.ID,
		Side:       params.Side,
		Stake:      params.Stake,
		PayoutMult: decimal.NewFromFloat(params.Multiplier(market.YesCount, market.NoCount)),
		CreatedAt:  params.Now,
	}
	s.wagers[wager.ID] = wager
	user.Balance = user.Balance.Sub(params.Stake)
	if params.Side == models.SideYes {
		market.YesCount++
	} else {
		market.NoCount++
	}
	cp := *wager
	return &cp, user.Balance, nil
}

func (s *stubRepo) ListUnsettledWagersByMarket(ctx context.Context, marketID string) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wager
	for _, w := range s.wagers {
		if w.MarketID == marketID && !w.Settled {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *stubRepo) ListUnsettledWagersOnResolvedMarketsByUser(ctx context.Context, userID string) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wager
	for _, w := range s.wagers {
		if w.UserID != userID || w.Settled {
			continue
		}
		if m, ok := s.markets[w.MarketID]; ok && m.Resolved {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *stubRepo) ListWagersByUser(ctx context.Context, userID string, limit int) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wager
	for _, w := range s.wagers {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *stubRepo) SettleWager(ctx context.Context, params repository.SettleWagerParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[params.WagerID]
	if !ok || w.Settled {
		return false, nil
	}
	user, ok := s.users[params.UserID]
	if !ok {
		// Matches the real store: the transaction rolls back and the
		// wager stays unsettled for the next sweep.
		return false, repository.ErrUserNotFound
	}
	win := params.Win
	pnl := params.PnL
	w.Settled = true
	w.Win = &win
	w.PnL = &pnl
	user.Balance = user.Balance.Add(params.Credit)
	user.TotalPnL = user.TotalPnL.Add(params.PnL)
	return true, nil
}

// stubOracle is a canned PriceOracle.
type stubOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	images map[string]string
	err    error
	calls  int
}

func (o *stubOracle) GetPrice(ctx context.Context, coinID string) (decimal.Decimal, error) {
	d, err := o.GetDetails(ctx, coinID)
	return d.Price, err
}

func (o *stubOracle) GetDetails(ctx context.Context, coinID string) (coingecko.Details, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return coingecko.Details{CoinID: coinID, Price: coingecko.SentinelPrice}, o.err
	}
	price, ok := o.prices[coinID]
	if !ok {
		return coingecko.Details{CoinID: coinID, Price: coingecko.SentinelPrice}, coingecko.ErrUnavailable
	}
	return coingecko.Details{
		CoinID:    coinID,
		Price:     price,
		ImageURL:  o.images[coinID],
		FetchedAt: time.Now().UTC(),
	}, nil
}
