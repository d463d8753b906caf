// Package view derives the ordered, filtered screener rows and their totals from a
// token snapshot. Everything here is pure: the same inputs always give the same output.
package view

import (
	"sort"
	"time"

	"token_screener/internal/domain/entity"
)

const (
	// NewPairWindow bounds the "new" view.
	NewPairWindow = 24 * time.Hour

	// HotPriceChange1h is the 1h gain (percent) above which a row counts as hot.
	HotPriceChange1h = 10.0
)

// Params are the caller-controlled inputs of a derivation.
type Params struct {
	View    entity.View
	Filters entity.FilterState
	// Sort is the caller's explicit ordering. Zero means the preset's sort, or DefaultSort.
	Sort entity.SortSpec
	// Preset, when set, is merged over Filters.
	Preset *Preset
	Now    time.Time
}

// Sets are the membership sets the exclusive views filter on.
type Sets struct {
	Watchlist map[string]struct{}
	Holdings  map[string]struct{}
	Alerted   map[string]struct{}
}

// SetOf builds a membership set from addresses.
func SetOf(addresses ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		out[a] = struct{}{}
	}
	return out
}

// Derive applies the view's base filter, the user filters and the sort, then computes
// totals over what is left. tokens is never modified.
func Derive(tokens []entity.Token, p Params, sets Sets) entity.ViewResult {
	filters := p.Filters
	if p.Preset != nil {
		filters = filters.Merge(p.Preset.Filters)
	}
	sortSpec := p.Sort
	if sortSpec.Field == "" {
		sortSpec = entity.DefaultSort
		if p.Preset != nil {
			sortSpec = p.Preset.Sort
		}
	}
	if forced, ok := forcedSort(p.View); ok {
		sortSpec = forced
	}

	rows := make([]entity.Token, 0, len(tokens))
	for _, t := range tokens {
		if !inView(t, p.View, sets, p.Now) {
			continue
		}
		if !passesFilters(t, filters, p.Now) {
			continue
		}
		rows = append(rows, t)
	}

	SortTokens(rows, sortSpec)
	return entity.ViewResult{Rows: rows, Totals: Totals(rows), Sort: sortSpec}
}

// ResolveSort turns request parameters into Params.Sort. Both empty yields the zero
// spec so a preset's sort applies. A direction alone keeps the preset's field.
func ResolveSort(field, dir string, preset *Preset) (entity.SortSpec, error) {
	if field == "" && dir == "" {
		return entity.SortSpec{}, nil
	}
	spec, err := entity.ParseSort(field, dir)
	if err != nil {
		return entity.SortSpec{}, err
	}
	if field == "" && preset != nil {
		spec.Field = preset.Sort.Field
	}
	return spec, nil
}

func forcedSort(v entity.View) (entity.SortSpec, bool) {
	switch v {
	case entity.ViewNew:
		return entity.SortSpec{Field: entity.SortPairCreatedAt, Direction: entity.SortDesc}, true
	case entity.ViewGainers:
		return entity.SortSpec{Field: entity.SortPriceChange24h, Direction: entity.SortDesc}, true
	case entity.ViewLosers:
		return entity.SortSpec{Field: entity.SortPriceChange24h, Direction: entity.SortAsc}, true
	default:
		return entity.SortSpec{}, false
	}
}

func inView(t entity.Token, v entity.View, sets Sets, now time.Time) bool {
	switch v {
	case entity.ViewWatchlist:
		return member(sets.Watchlist, t.Address)
	case entity.ViewPortfolio:
		return member(sets.Holdings, t.Address)
	case entity.ViewAlerts:
		return member(sets.Alerted, t.Address)
	case entity.ViewNew:
		return t.HasCreationTime() && now.Sub(t.PairCreatedAt) <= NewPairWindow
	case entity.ViewGainers:
		return t.PriceChange24h > 0
	case entity.ViewLosers:
		return t.PriceChange24h < 0
	default:
		return true
	}
}

func member(set map[string]struct{}, addr string) bool {
	_, ok := set[addr]
	return ok
}

func passesFilters(t entity.Token, f entity.FilterState, now time.Time) bool {
	if f.MinLiquidity != nil && t.LiquidityUSD < *f.MinLiquidity {
		return false
	}
	if f.MinVolume != nil && t.Volume24h < *f.MinVolume {
		return false
	}
	if f.MaxAge != nil {
		if !t.HasCreationTime() || now.Sub(t.PairCreatedAt) > *f.MaxAge {
			return false
		}
	}
	if f.Chain != nil && *f.Chain != "" && t.ChainID != *f.Chain {
		return false
	}
	return true
}

// SortTokens orders rows in place. Equal keys keep their input order.
func SortTokens(rows []entity.Token, spec entity.SortSpec) {
	key := sortKey(spec.Field)
	desc := spec.Direction != entity.SortAsc
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		if desc {
			return a > b
		}
		return a < b
	})
}

func sortKey(field entity.SortField) func(entity.Token) float64 {
	switch field {
	case entity.SortLiquidity:
		return func(t entity.Token) float64 { return t.LiquidityUSD }
	case entity.SortMarketCap:
		return func(t entity.Token) float64 { return t.MarketCap }
	case entity.SortFDV:
		return func(t entity.Token) float64 { return t.FDV }
	case entity.SortPrice:
		return func(t entity.Token) float64 { return t.PriceUSD }
	case entity.SortPriceChange5m:
		return func(t entity.Token) float64 { return t.PriceChange5m }
	case entity.SortPriceChange1h:
		return func(t entity.Token) float64 { return t.PriceChange1h }
	case entity.SortPriceChange6h:
		return func(t entity.Token) float64 { return t.PriceChange6h }
	case entity.SortPriceChange24h:
		return func(t entity.Token) float64 { return t.PriceChange24h }
	case entity.SortTxns:
		return func(t entity.Token) float64 { return float64(t.Txns24h) }
	case entity.SortMakers:
		return func(t entity.Token) float64 { return float64(t.Makers) }
	case entity.SortBoosts:
		return func(t entity.Token) float64 { return float64(t.Boosts) }
	case entity.SortPairCreatedAt:
		return func(t entity.Token) float64 {
			if !t.HasCreationTime() {
				return 0
			}
			return float64(t.PairCreatedAt.UnixMilli())
		}
	default:
		return func(t entity.Token) float64 { return t.Volume24h }
	}
}

// Totals aggregates a row set.
func Totals(rows []entity.Token) entity.ViewTotals {
	var out entity.ViewTotals
	for _, t := range rows {
		out.Count++
		out.Volume24h += t.Volume24h
		out.Txns += t.Txns24h
		out.MarketCap += t.MarketCap
		if IsHot(t) {
			out.HotCount++
		}
	}
	return out
}

// IsHot reports whether a token is trending: a strong 1h move or an active boost.
func IsHot(t entity.Token) bool {
	return t.PriceChange1h >= HotPriceChange1h || t.Boosts > 0
}
