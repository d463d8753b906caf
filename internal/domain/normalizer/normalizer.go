// Package normalizer turns raw upstream pairs into screener tokens.
package normalizer

import (
	"math"
	"strings"
	"time"

	"token_screener/internal/domain/entity"
	dex "token_screener/internal/entity"
	"token_screener/internal/pkg/utils"
)

// Normalize converts one raw pair into a Token. It never fails: absent numerics become 0
// and NaN or Inf never leave this function.
func Normalize(raw dex.PairData) entity.Token {
	t := entity.Token{
		Address:     strings.TrimSpace(raw.BaseToken.Address),
		Name:        raw.BaseToken.Name,
		Symbol:      raw.BaseToken.Symbol,
		ChainID:     raw.ChainID,
		PairAddress: raw.PairAddress,
		DexID:       raw.DexID,
		URL:         raw.URL,
	}
	if raw.Info != nil {
		t.LogoURL = raw.Info.ImageURL
	}
	if raw.PriceUsd.Valid {
		t.PriceUSD = finite(raw.PriceUsd.Value)
	}

	if pc := raw.PriceChange; pc != nil {
		t.PriceChange5m = num(pc.M5)
		t.PriceChange1h = num(pc.H1)
		t.PriceChange6h = num(pc.H6)
		t.PriceChange24h = num(pc.H24)
	}
	if raw.Volume != nil {
		t.Volume24h = num(raw.Volume.H24)
	}
	t.LiquidityUSD = finite(raw.LiquidityUSD())
	t.FDV = num(raw.Fdv)
	if raw.MarketCap != nil {
		t.MarketCap = num(raw.MarketCap)
	} else {
		t.MarketCap = t.FDV
	}

	if raw.Txns != nil && raw.Txns.H24 != nil {
		t.Buys24h = count(raw.Txns.H24.Buys)
		t.Sells24h = count(raw.Txns.H24.Sells)
	}
	t.Txns24h = t.Buys24h + t.Sells24h
	t.Makers = t.Txns24h

	if raw.PairCreatedAt != nil && *raw.PairCreatedAt > 0 {
		t.PairCreatedAt = time.UnixMilli(*raw.PairCreatedAt).UTC()
	}
	if raw.Boosts != nil {
		t.Boosts = count(raw.Boosts.Active)
	}
	return t
}

// SelectCanonical groups pairs by base token address and keeps the one with the
// highest USD liquidity. Ties keep the first pair seen. Pairs without a base address
// are skipped. The map is keyed by utils.AddressKey.
func SelectCanonical(pairs []dex.PairData) map[string]dex.PairData {
	best := make(map[string]dex.PairData, len(pairs))
	for _, p := range pairs {
		addr := utils.AddressKey(p.BaseToken.Address)
		if addr == "" {
			continue
		}
		cur, ok := best[addr]
		if !ok || finite(p.LiquidityUSD()) > finite(cur.LiquidityUSD()) {
			best[addr] = p
		}
	}
	return best
}

// CanonicalFor returns the highest-liquidity pair whose base token is address, matched
// the same way SelectCanonical groups.
func CanonicalFor(address string, pairs []dex.PairData) (dex.PairData, bool) {
	var (
		best  dex.PairData
		found bool
	)
	key := utils.AddressKey(address)
	for _, p := range pairs {
		if key == "" || utils.AddressKey(p.BaseToken.Address) != key {
			continue
		}
		if !found || finite(p.LiquidityUSD()) > finite(best.LiquidityUSD()) {
			best, found = p, true
		}
	}
	return best, found
}

// NormalizeAll canonicalizes and normalizes a pair list. Output order follows the first
// upstream appearance of each token. dropped counts pairs rejected for lacking a base
// token address.
func NormalizeAll(pairs []dex.PairData) (tokens []entity.Token, dropped int) {
	canonical := SelectCanonical(pairs)
	tokens = make([]entity.Token, 0, len(canonical))
	seen := make(map[string]struct{}, len(canonical))
	for _, p := range pairs {
		addr := utils.AddressKey(p.BaseToken.Address)
		if addr == "" {
			dropped++
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		tokens = append(tokens, Normalize(canonical[addr]))
	}
	return tokens, dropped
}

func num(v *float64) float64 {
	if v == nil {
		return 0
	}
	return finite(*v)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func count(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
