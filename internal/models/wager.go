package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Wager is a user's staked position on one side of a market.
// PayoutMult is frozen at placement time and never recalculated,
// even though the market's live odds keep moving afterwards.
type Wager struct {
	ID       string `gorm:"primaryKey;type:text"`
	UserID   string `gorm:"type:text;not null;index"`
	MarketID string `gorm:"type:text;not null;index:idx_wagers_market_settled,priority:1"`

	Side       string          `gorm:"type:varchar(4);not null"`
	Stake      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	PayoutMult decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	Settled bool             `gorm:"not null;default:false;index:idx_wagers_market_settled,priority:2"`
	Win     *bool
	PnL     *decimal.Decimal `gorm:"column:pnl;type:numeric(30,10)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Wager) TableName() string {
	return "wagers"
}
