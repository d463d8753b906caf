package entity

import "math/big"

// Holding is one token balance held by a wallet, valued at the token's canonical price.
type Holding struct {
	Mint             string   `json:"mint"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name,omitempty"`
	Decimals         uint8    `json:"decimals"`
	Amount           *big.Int `json:"-"`
	FormattedBalance string   `json:"formattedBalance"`
	UIAmount         float64  `json:"uiAmount"`
	PriceUSD         float64  `json:"priceUsd"`
	ValueUSD         float64  `json:"valueUsd"`
}

// WalletHoldings is the raw result of a wallet read, before pricing.
type WalletHoldings struct {
	Wallet        string
	NativeBalance *big.Int
	Tokens        []Holding
}

// Portfolio is a wallet's holdings valued in USD.
type Portfolio struct {
	Wallet         string           `json:"wallet"`
	Network        string           `json:"network"`
	NativeSymbol   string           `json:"nativeSymbol"`
	NativeBalance  string           `json:"nativeBalance"`
	NativePriceUSD float64          `json:"nativePriceUsd"`
	NativeValueUSD float64          `json:"nativeValueUsd"`
	Holdings       []Holding        `json:"holdings"`
	TotalValueUSD  float64          `json:"totalValueUsd"`
	Errors         []PortfolioError `json:"errors,omitempty"`
}

// Mints returns the token addresses present in the portfolio.
func (p Portfolio) Mints() []string {
	out := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		out = append(out, h.Mint)
	}
	return out
}
