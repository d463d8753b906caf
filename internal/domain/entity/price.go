package entity

import "time"

// PriceUpdate is one realtime price observation for a token.
type PriceUpdate struct {
	Address   string    `json:"address"`
	PriceUSD  float64   `json:"priceUsd"`
	Change5m  float64   `json:"change5m"`
	Change1h  float64   `json:"change1h"`
	Volume24h float64   `json:"volume24h"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceBatch groups updates delivered together by one transport message or polling tick.
type PriceBatch []PriceUpdate

// Prices flattens the batch into an address -> price lookup. Later entries win.
func (b PriceBatch) Prices() map[string]float64 {
	out := make(map[string]float64, len(b))
	for _, u := range b {
		out[u.Address] = u.PriceUSD
	}
	return out
}
