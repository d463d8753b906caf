package port

import (
	"context"
	"errors"
	"io"

	"token_screener/internal/domain/entity"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for an absent key.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the durable client-local store. Values are opaque JSON blobs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ClaimRepository persists users, token profiles and ownership claims.
type ClaimRepository interface {
	// UpsertUser returns the user for wallet, creating it on first sight.
	UpsertUser(ctx context.Context, wallet string) (entity.User, error)

	// GetProfile returns entity.ErrNotFound when the token has no profile yet.
	GetProfile(ctx context.Context, tokenAddress string) (entity.TokenProfile, error)

	// SaveProfile inserts or replaces the editable profile fields.
	SaveProfile(ctx context.Context, profile entity.TokenProfile) (entity.TokenProfile, error)

	// RecordClaim stores the claim and marks the profile as claimed by its wallet.
	// Returns entity.ErrAlreadyClaimed if another wallet owns the profile.
	RecordClaim(ctx context.Context, claim entity.Claim) (entity.Claim, error)
}

// BlobStore stores uploaded images for token profiles.
type BlobStore interface {
	// Put stores the content under key and returns its public path.
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
