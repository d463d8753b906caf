package entity

import "time"

// User is a wallet that has interacted with the claim workflow.
type User struct {
	Wallet    string    `json:"wallet"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenProfile is the editable, claimable profile of a token.
type TokenProfile struct {
	TokenAddress string     `json:"tokenAddress"`
	Description  string     `json:"description,omitempty"`
	Website      string     `json:"website,omitempty"`
	Twitter      string     `json:"twitter,omitempty"`
	Telegram     string     `json:"telegram,omitempty"`
	LogoURL      string     `json:"logoUrl,omitempty"`
	BannerURL    string     `json:"bannerUrl,omitempty"`
	ClaimedBy    string     `json:"claimedBy,omitempty"`
	ClaimedAt    *time.Time `json:"claimedAt,omitempty"`
	Verified     bool       `json:"verified"`
	Promoted     bool       `json:"promoted"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Claim records a wallet signature proving ownership of a token profile.
type Claim struct {
	ID           int64     `json:"id"`
	TokenAddress string    `json:"tokenAddress"`
	Wallet       string    `json:"wallet"`
	Message      string    `json:"message"`
	Signature    string    `json:"signature"`
	CreatedAt    time.Time `json:"createdAt"`
}
