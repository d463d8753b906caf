package entity

import "time"

// Candle is one OHLC bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TopHolder is one of a token's largest holders.
type TopHolder struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// HolderStats summarizes holder concentration.
type HolderStats struct {
	Holders         int         `json:"holders,omitempty"` // 0 when the source cannot count holders
	Top10Percent    float64     `json:"top10Percent"`
	TopHolders      []TopHolder `json:"topHolders"`
	Source          string      `json:"source"`
	PartialCoverage bool        `json:"partialCoverage,omitempty"`
}

// SecurityFlags reports mint/freeze authority state of a token.
type SecurityFlags struct {
	Mintable        bool   `json:"mintable"`
	Freezable       bool   `json:"freezable"`
	MintAuthority   string `json:"mintAuthority,omitempty"`
	FreezeAuthority string `json:"freezeAuthority,omitempty"`
	Source          string `json:"source"`
}
