// Package odds implements the pari-mutuel payout rule.
//
// The rule is deliberately simple: each side's multiplier is 2 minus its
// share of the pool, so the side with fewer takers pays closer to 2x and
// the crowded side pays closer to 1x. Multipliers captured at placement
// time are financially binding, so this computation must stay stable.
package odds

// Odds is the live pricing of a market derived from its pool counts.
type Odds struct {
	YesMultiplier float64 `json:"yesMultiplier"`
	NoMultiplier  float64 `json:"noMultiplier"`
	YesShare      float64 `json:"yesShare"`
}

// Compute maps a market's accumulated YES/NO wager counts to payout
// multipliers. An empty pool prices both sides at the neutral 2.0.
func Compute(yesCount, noCount int64) Odds {
	total := yesCount + noCount
	if total == 0 {
		return Odds{YesMultiplier: 2, NoMultiplier: 2, YesShare: 0.5}
	}

	yesShare := float64(yesCount) / float64(total)
	noShare := float64(noCount) / float64(total)

	return Odds{
		YesMultiplier: 2 - yesShare,
		NoMultiplier:  2 - noShare,
		YesShare:      yesShare,
	}
}

// Multiplier returns the payout multiplier for one side.
func (o Odds) Multiplier(side string) float64 {
	if side == "YES" {
		return o.YesMultiplier
	}
	return o.NoMultiplier
}
