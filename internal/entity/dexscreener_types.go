package entity

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// DEXTokenPair is the wrapped response shape returned by the list, search and token
// endpoints. A missing "pairs" key means no results, not an error.
type DEXTokenPair struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pair          *PairData  `json:"pair"`
	Pairs         []PairData `json:"pairs"`
}

// PairData is one upstream trading pair. Every numeric field is optional upstream, so
// they are pointers here and the normalizer decides the defaults.
type PairData struct {
	ChainID       string           `json:"chainId"`
	DexID         string           `json:"dexId"`
	URL           string           `json:"url"`
	PairAddress   string           `json:"pairAddress"`
	BaseToken     DEXToken         `json:"baseToken"`
	QuoteToken    DEXToken         `json:"quoteToken"`
	PriceNative   FlexFloat        `json:"priceNative"`
	PriceUsd      FlexFloat        `json:"priceUsd"`
	Txns          *PairTxns        `json:"txns"`
	Volume        *PairVolume      `json:"volume"`
	PriceChange   *PairPriceChange `json:"priceChange"`
	Liquidity     *DEXLiquidity    `json:"liquidity"`
	Fdv           *float64         `json:"fdv"`
	MarketCap     *float64         `json:"marketCap"`
	PairCreatedAt *int64           `json:"pairCreatedAt"`
	Info          *PairInfo        `json:"info"`
	Boosts        *PairBoosts      `json:"boosts"`
}

// DEXToken represents a token in a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity represents the liquidity information for a pair.
type DEXLiquidity struct {
	Usd   *float64 `json:"usd"`
	Base  *float64 `json:"base"`
	Quote *float64 `json:"quote"`
}

// PairTxns represents transaction counts for a pair.
type PairTxns struct {
	M5  *TxnSummary `json:"m5"`
	H1  *TxnSummary `json:"h1"`
	H6  *TxnSummary `json:"h6"`
	H24 *TxnSummary `json:"h24"`
}

// TxnSummary contains buy and sell counts.
type TxnSummary struct {
	Buys  *int `json:"buys"`
	Sells *int `json:"sells"`
}

// PairVolume represents trading volume over different periods.
type PairVolume struct {
	M5  *float64 `json:"m5"`
	H1  *float64 `json:"h1"`
	H6  *float64 `json:"h6"`
	H24 *float64 `json:"h24"`
}

// PairPriceChange represents price change percentage over different periods.
type PairPriceChange struct {
	M5  *float64 `json:"m5"`
	H1  *float64 `json:"h1"`
	H6  *float64 `json:"h6"`
	H24 *float64 `json:"h24"`
}

// PairInfo carries optional presentation metadata.
type PairInfo struct {
	ImageURL string `json:"imageUrl"`
}

// PairBoosts carries the active boost counter.
type PairBoosts struct {
	Active *int `json:"active"`
}

// FlexFloat accepts a JSON number, a numeric string, or null. Unparsable input
// decodes as absent rather than failing the whole payload.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := jsoniter.Unmarshal(data, &s); err != nil {
			return nil
		}
	} else {
		s = string(data)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

// MarshalJSON implements json.Marshaler so fixtures round-trip as strings.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(strconv.FormatFloat(f.Value, 'f', -1, 64))), nil
}

// LiquidityUSD returns the pair's USD liquidity, 0 when absent.
func (p PairData) LiquidityUSD() float64 {
	if p.Liquidity == nil || p.Liquidity.Usd == nil {
		return 0
	}
	return *p.Liquidity.Usd
}
