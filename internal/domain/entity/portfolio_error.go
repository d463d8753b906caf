package entity

// PortfolioError describes a partial failure while valuing a wallet.
type PortfolioError struct {
	TokenAddress string `json:"tokenAddress,omitempty"`
	TokenSymbol  string `json:"tokenSymbol,omitempty"`
	IsNative     bool   `json:"isNative,omitempty"`
	Message      string `json:"message"`
}
