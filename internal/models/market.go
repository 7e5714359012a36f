package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	OutcomeYes  = "YES"
	OutcomeNo   = "NO"
	OutcomePush = "PUSH"
)

// Market is one binary price question over a fixed time window.
// Rows are never deleted; resolved markets are kept for history.
type Market struct {
	ID          string `gorm:"primaryKey;type:text"`
	Symbol      string `gorm:"type:varchar(50);not null;index"`
	Title       string `gorm:"type:text;not null"`
	DurationMin int    `gorm:"not null"`

	StartTime time.Time `gorm:"type:timestamptz;not null"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index:idx_markets_resolved_end,priority:2"`

	StartPrice decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	EndPrice   *decimal.Decimal `gorm:"type:numeric(30,10)"`

	Resolved bool    `gorm:"not null;default:false;index:idx_markets_resolved_end,priority:1"`
	Outcome  *string `gorm:"type:varchar(10)"`

	YesCount int64 `gorm:"not null;default:0"`
	NoCount  int64 `gorm:"not null;default:0"`

	LogoURL   *string        `gorm:"type:text"`
	OracleRaw datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Market) TableName() string {
	return "markets"
}

// Open reports whether the market still accepts wagers at now, keeping a
// safety buffer before the end time so no position lands on an expiring market.
func (m *Market) Open(now time.Time, buffer time.Duration) bool {
	return !m.Resolved && now.Before(m.EndTime.Add(-buffer))
}

func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.EndTime)
}
