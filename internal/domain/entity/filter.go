package entity

import "time"

// FilterState holds the user's screener thresholds. A nil field means no constraint.
type FilterState struct {
	MinLiquidity *float64       `json:"minLiquidity,omitempty"`
	MinVolume    *float64       `json:"minVolume,omitempty"`
	MaxAge       *time.Duration `json:"maxAge,omitempty"`
	Chain        *string        `json:"chain,omitempty"`
}

// Merge returns f with every non-nil field of over applied on top.
func (f FilterState) Merge(over FilterState) FilterState {
	out := f
	if over.MinLiquidity != nil {
		out.MinLiquidity = over.MinLiquidity
	}
	if over.MinVolume != nil {
		out.MinVolume = over.MinVolume
	}
	if over.MaxAge != nil {
		out.MaxAge = over.MaxAge
	}
	if over.Chain != nil {
		out.Chain = over.Chain
	}
	return out
}

// SearchEntry is one recent-search history record.
type SearchEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// SoundPreference toggles the audio cue played when alerts fire.
type SoundPreference struct {
	Enabled bool `json:"enabled"`
}
