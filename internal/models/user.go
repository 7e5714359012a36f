package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a wallet-identified account holding the virtual token balance.
// Balance is only ever changed by wager placement (debit) and settlement
// (credit); TotalPnL is the running sum of every settled wager's pnl.
type User struct {
	ID     string `gorm:"primaryKey;type:text"`
	Wallet string `gorm:"type:text;not null;uniqueIndex"`

	Balance  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalPnL decimal.Decimal `gorm:"column:total_pnl;type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
