package entity

// NetworkKind selects the wallet reader implementation.
type NetworkKind string

const (
	NetworkSolana NetworkKind = "solana"
	NetworkEVM    NetworkKind = "evm"
)

// NetworkDefinition describes the chain the screener is pointed at.
type NetworkDefinition struct {
	Identifier   string      `json:"identifier" yaml:"identifier"` // DexScreener chain id, e.g. "solana"
	Name         string      `json:"name" yaml:"name"`
	Kind         NetworkKind `json:"kind" yaml:"kind"`
	NativeSymbol string      `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals     uint8       `json:"decimals" yaml:"decimals"`
	RPCURL       string      `json:"rpcUrl" yaml:"rpcUrl"`
	// WrappedNativeAddress prices the native balance through its wrapped token pair.
	WrappedNativeAddress string `json:"wrappedNativeAddress" yaml:"wrappedNativeAddress"`
}

// Solana is the default network definition.
var Solana = NetworkDefinition{
	Identifier:           "solana",
	Name:                 "Solana Mainnet",
	Kind:                 NetworkSolana,
	NativeSymbol:         "SOL",
	Decimals:             9,
	RPCURL:               "https://api.mainnet-beta.solana.com",
	WrappedNativeAddress: "So11111111111111111111111111111111111111112",
}
