// Package assets holds the static coin table tying together the asset
// identity used everywhere else: market symbol, display ticker, and the
// CoinGecko feed id. Keeping it in one table guarantees the odds, oracle
// and supply paths agree on what a symbol means.
package assets

import "strings"

type Coin struct {
	Symbol      string
	Name        string
	Ticker      string
	CoinGeckoID string
	LogoURL     string
}

var majors = []Coin{
	{Symbol: "bitcoin", Name: "Bitcoin", Ticker: "BTC", CoinGeckoID: "bitcoin", LogoURL: "/assets/logos/btc.png"},
	{Symbol: "ethereum", Name: "Ethereum", Ticker: "ETH", CoinGeckoID: "ethereum", LogoURL: "/assets/logos/eth.png"},
	{Symbol: "solana", Name: "Solana", Ticker: "SOL", CoinGeckoID: "solana", LogoURL: "/assets/logos/sol.png"},
	{Symbol: "cardano", Name: "Cardano", Ticker: "ADA", CoinGeckoID: "cardano", LogoURL: "/assets/logos/ada.png"},
	{Symbol: "binancecoin", Name: "BNB", Ticker: "BNB", CoinGeckoID: "binancecoin", LogoURL: "/assets/logos/bnb.png"},
	{Symbol: "chainlink", Name: "Chainlink", Ticker: "LINK", CoinGeckoID: "chainlink", LogoURL: "/assets/logos/link.png"},
	{Symbol: "dogwifcoin", Name: "dogwifhat", Ticker: "WIF", CoinGeckoID: "dogwifcoin", LogoURL: "/assets/logos/wif.png"},
	{Symbol: "bonk", Name: "Bonk", Ticker: "BONK", CoinGeckoID: "bonk", LogoURL: "/assets/logos/bonk.png"},
	{Symbol: "pepe", Name: "Pepe", Ticker: "PEPE", CoinGeckoID: "pepe", LogoURL: "/assets/logos/pepe.png"},
}

var bySymbol = func() map[string]Coin {
	m := make(map[string]Coin, len(majors))
	for _, c := range majors {
		m[c.Symbol] = c
	}
	return m
}()

// Majors returns the supported coins in priority order. The first
// entries are the most liquid and are used as emergency supply.
func Majors() []Coin {
	out := make([]Coin, len(majors))
	copy(out, majors)
	return out
}

func BySymbol(symbol string) (Coin, bool) {
	c, ok := bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	return c, ok
}

// CoinGeckoID maps a market symbol to its feed id, falling back to the
// symbol itself for coins outside the table.
func CoinGeckoID(symbol string) string {
	if c, ok := BySymbol(symbol); ok {
		return c.CoinGeckoID
	}
	return strings.ToLower(strings.TrimSpace(symbol))
}

// Ticker returns the display ticker for a symbol, upper-cased symbol
// when unknown.
func Ticker(symbol string) string {
	if c, ok := BySymbol(symbol); ok {
		return c.Ticker
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}
