package entity

import "fmt"

// View is a mutually exclusive display mode of the screener.
type View string

const (
	ViewAll       View = "all"
	ViewWatchlist View = "watchlist"
	ViewNew       View = "new"
	ViewGainers   View = "gainers"
	ViewLosers    View = "losers"
	ViewPortfolio View = "portfolio"
	ViewAlerts    View = "alerts"
)

// ParseView maps a request parameter onto a View. Empty means ViewAll.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewWatchlist, ViewNew, ViewGainers, ViewLosers, ViewPortfolio, ViewAlerts:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown view %q", ErrInvalidInput, s)
	}
}

// SortField names a Token attribute the screener can order by.
type SortField string

const (
	SortVolume24h      SortField = "volume24h"
	SortLiquidity      SortField = "liquidity"
	SortMarketCap      SortField = "marketCap"
	SortFDV            SortField = "fdv"
	SortPrice          SortField = "price"
	SortPriceChange5m  SortField = "priceChange5m"
	SortPriceChange1h  SortField = "priceChange1h"
	SortPriceChange6h  SortField = "priceChange6h"
	SortPriceChange24h SortField = "priceChange24h"
	SortTxns           SortField = "txns"
	SortMakers         SortField = "makers"
	SortPairCreatedAt  SortField = "pairCreatedAt"
	SortBoosts         SortField = "boosts"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec pairs a field with a direction.
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort is used by the "all" view when the caller supplies nothing.
var DefaultSort = SortSpec{Field: SortVolume24h, Direction: SortDesc}

// ParseSort builds a SortSpec from request parameters, defaulting empty values.
func ParseSort(field, dir string) (SortSpec, error) {
	spec := DefaultSort
	if field != "" {
		switch f := SortField(field); f {
		case SortVolume24h, SortLiquidity, SortMarketCap, SortFDV, SortPrice,
			SortPriceChange5m, SortPriceChange1h, SortPriceChange6h, SortPriceChange24h,
			SortTxns, SortMakers, SortPairCreatedAt, SortBoosts:
			spec.Field = f
		default:
			return SortSpec{}, fmt.Errorf("%w: unknown sort field %q", ErrInvalidInput, field)
		}
	}
	switch d := SortDirection(dir); d {
	case "":
	case SortAsc, SortDesc:
		spec.Direction = d
	default:
		return SortSpec{}, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidInput, dir)
	}
	return spec, nil
}

// ViewTotals are aggregates over the post-filter row set.
type ViewTotals struct {
	Count     int     `json:"count"`
	Volume24h float64 `json:"volume24h"`
	Txns      int     `json:"txns"`
	MarketCap float64 `json:"marketCap"`
	HotCount  int     `json:"hotCount"`
}

// ViewResult is the ordered display list plus its totals. Sort is the ordering the
// rows actually have. MembershipLoaded is false while the watchlist or alerts are
// still loading; the membership views are then provisional.
type ViewResult struct {
	Rows             []Token    `json:"rows"`
	Totals           ViewTotals `json:"totals"`
	Sort             SortSpec   `json:"sort"`
	MembershipLoaded bool       `json:"membershipLoaded"`
}
