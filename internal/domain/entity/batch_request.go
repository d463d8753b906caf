package entity

import "math/big"

// BalanceRequestType defines the type of balance request.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the balance of a specific token for a wallet.
	TokenBalanceRequest
	// TokenDecimalsRequest reads a token contract's decimals.
	TokenDecimalsRequest
)

// BalanceRequestItem is a single entry of a batched balance read.
type BalanceRequestItem struct {
	ID            string
	Type          BalanceRequestType
	WalletAddress string
	TokenAddress  string
}

// BalanceResultItem is the result of a single balance request from a batch.
type BalanceResultItem struct {
	RequestID    string
	TokenAddress string
	IsNative     bool
	Balance      *big.Int
	Decimals     uint8
	Error        error
}
