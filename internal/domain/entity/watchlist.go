package entity

import "time"

// WatchlistItem is a user-pinned token. Identity is Address.
type WatchlistItem struct {
	Address string    `json:"address"`
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}
