package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"fliq/internal/models"
	"fliq/internal/odds"
)

// View payloads decouple the wire format from the gorm models: the API
// speaks camelCase and never leaks internal columns like the raw oracle
// snapshot.

type marketView struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	Title         string           `json:"title"`
	DurationMin   int              `json:"durationMin"`
	StartTime     time.Time        `json:"startTime"`
	EndTime       time.Time        `json:"endTime"`
	StartPrice    decimal.Decimal  `json:"startPrice"`
	EndPrice      *decimal.Decimal `json:"endPrice,omitempty"`
	Resolved      bool             `json:"resolved"`
	Outcome       *string          `json:"outcome,omitempty"`
	YesCount      int64            `json:"yesCount"`
	NoCount       int64            `json:"noCount"`
	LogoURL       *string          `json:"logoUrl,omitempty"`
	YesMultiplier float64          `json:"yesMultiplier"`
	NoMultiplier  float64          `json:"noMultiplier"`
	YesShare      float64          `json:"yesShare"`
	TimeLeftMs    int64            `json:"timeLeftMs"`
}

func newMarketView(m models.Market, now time.Time) marketView {
	o := odds.Compute(m.YesCount, m.NoCount)
	timeLeft := m.EndTime.Sub(now).Milliseconds()
	if timeLeft < 0 {
		timeLeft = 0
	}
	return marketView{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Title:         m.Title,
		DurationMin:   m.DurationMin,
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		StartPrice:    m.StartPrice,
		EndPrice:      m.EndPrice,
		Resolved:      m.Resolved,
		Outcome:       m.Outcome,
		YesCount:      m.YesCount,
		NoCount:       m.NoCount,
		LogoURL:       m.LogoURL,
		YesMultiplier: o.YesMultiplier,
		NoMultiplier:  o.NoMultiplier,
		YesShare:      o.YesShare,
		TimeLeftMs:    timeLeft,
	}
}

type wagerView struct {
	ID         string           `json:"id"`
	MarketID   string           `json:"marketId"`
	Side       string           `json:"side"`
	Stake      decimal.Decimal  `json:"stake"`
	PayoutMult decimal.Decimal  `json:"payoutMult"`
	Settled    bool             `json:"settled"`
	Win        *bool            `json:"win,omitempty"`
	PnL        *decimal.Decimal `json:"pnl,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func newWagerView(w models.Wager) wagerView {
	return wagerView{
		ID:         w.ID,
		MarketID:   w.MarketID,
		Side:       w.Side,
		Stake:      w.Stake,
		PayoutMult: w.PayoutMult,
		Settled:    w.Settled,
		Win:        w.Win,
		PnL:        w.PnL,
		CreatedAt:  w.CreatedAt,
	}
}

// marketSummary is the slice of a market embedded in history rows.
type marketSummary struct {
	Title    string  `json:"title"`
	Symbol   string  `json:"symbol"`
	Resolved bool    `json:"resolved"`
	Outcome  *string `json:"outcome,omitempty"`
}

type historyWagerView struct {
	wagerView
	Market *marketSummary `json:"market,omitempty"`
}

type userView struct {
	ID       string          `json:"id"`
	Wallet   string          `json:"wallet"`
	Balance  decimal.Decimal `json:"balance"`
	TotalPnL decimal.Decimal `json:"totalPnL"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:       u.ID,
		Wallet:   u.Wallet,
		Balance:  u.Balance,
		TotalPnL: u.TotalPnL,
	}
}
