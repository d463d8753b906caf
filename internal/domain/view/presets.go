package view

import (
	"sort"
	"strings"
	"time"

	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/utils"
)

// Preset is a named filter and sort combination.
type Preset struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Filters     entity.FilterState `json:"filters"`
	Sort        entity.SortSpec    `json:"sort"`
}

var builtinPresets = map[string]Preset{
	"hot": {
		Name:        "hot",
		Description: "Busy pairs with real volume",
		Filters:     entity.FilterState{MinVolume: utils.Ptr(100_000.0), MinLiquidity: utils.Ptr(10_000.0)},
		Sort:        entity.SortSpec{Field: entity.SortTxns, Direction: entity.SortDesc},
	},
	"pumping": {
		Name:        "pumping",
		Description: "Biggest 1h gainers with some liquidity",
		Filters:     entity.FilterState{MinLiquidity: utils.Ptr(5_000.0)},
		Sort:        entity.SortSpec{Field: entity.SortPriceChange1h, Direction: entity.SortDesc},
	},
	"safe": {
		Name:        "safe",
		Description: "Deep liquidity and steady volume",
		Filters:     entity.FilterState{MinLiquidity: utils.Ptr(100_000.0), MinVolume: utils.Ptr(50_000.0)},
		Sort:        entity.SortSpec{Field: entity.SortLiquidity, Direction: entity.SortDesc},
	},
	"fresh": {
		Name:        "fresh",
		Description: "Pairs created in the last 6 hours",
		Filters:     entity.FilterState{MaxAge: utils.Ptr(6 * time.Hour), MinLiquidity: utils.Ptr(5_000.0)},
		Sort:        entity.SortSpec{Field: entity.SortPairCreatedAt, Direction: entity.SortDesc},
	},
}

// LookupPreset finds a built-in preset by case-insensitive name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := builtinPresets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Presets lists the built-in presets ordered by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(builtinPresets))
	for _, p := range builtinPresets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
