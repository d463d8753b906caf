package entity

import "time"

// Token is the normalized view of a token, built from its canonical (highest-liquidity)
// trading pair. A Token set is rebuilt on every poll and never mutated in place.
type Token struct {
	Address        string    `json:"address"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	LogoURL        string    `json:"logoUrl,omitempty"`
	ChainID        string    `json:"chainId"`
	PriceUSD       float64   `json:"priceUsd"`
	PriceChange5m  float64   `json:"priceChange5m"`
	PriceChange1h  float64   `json:"priceChange1h"`
	PriceChange6h  float64   `json:"priceChange6h"`
	PriceChange24h float64   `json:"priceChange24h"`
	Volume24h      float64   `json:"volume24h"`
	LiquidityUSD   float64   `json:"liquidityUsd"`
	FDV            float64   `json:"fdv"`
	MarketCap      float64   `json:"marketCap"`
	PairAddress    string    `json:"pairAddress"`
	DexID          string    `json:"dexId"`
	URL            string    `json:"url,omitempty"`
	PairCreatedAt  time.Time `json:"pairCreatedAt"`
	Buys24h        int       `json:"buys24h"`
	Sells24h       int       `json:"sells24h"`
	Txns24h        int       `json:"txns24h"`
	// Makers is buys+sells. It over-counts traders who both buy and sell; consumers
	// already depend on this figure so it is kept as is.
	Makers int `json:"makers"`
	Boosts int `json:"boosts"`
}

// HasCreationTime reports whether the upstream pair carried a creation timestamp.
func (t Token) HasCreationTime() bool {
	return !t.PairCreatedAt.IsZero()
}

// PriceMap builds an address -> USD price lookup from a token set.
func PriceMap(tokens []Token) map[string]float64 {
	prices := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		prices[t.Address] = t.PriceUSD
	}
	return prices
}
