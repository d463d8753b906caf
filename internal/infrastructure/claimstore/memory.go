package claimstore

import (
	"context"
	"sync"
	"time"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// MemoryStore is an in-process port.ClaimRepository with the same claim semantics as
// PostgresStore.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]entity.User
	profiles   map[string]entity.TokenProfile
	claims     []entity.Claim
	signatures map[string]struct{}
	now        func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		users:      make(map[string]entity.User),
		profiles:   make(map[string]entity.TokenProfile),
		signatures: make(map[string]struct{}),
		now:        now,
	}
}

var _ port.ClaimRepository = (*MemoryStore)(nil)

func (s *MemoryStore) UpsertUser(_ context.Context, wallet string) (entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertUserLocked(wallet), nil
}

func (s *MemoryStore) upsertUserLocked(wallet string) entity.User {
	if u, ok := s.users[wallet]; ok {
		return u
	}
	u := entity.User{Wallet: wallet, CreatedAt: s.now().UTC()}
	s.users[wallet] = u
	return u
}

func (s *MemoryStore) GetProfile(_ context.Context, tokenAddress string) (entity.TokenProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[tokenAddress]
	if !ok {
		return entity.TokenProfile{}, entity.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, profile entity.TokenProfile) (entity.TokenProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.profiles[profile.TokenAddress]
	cur.TokenAddress = profile.TokenAddress
	cur.Description = profile.Description
	cur.Website = profile.Website
	cur.Twitter = profile.Twitter
	cur.Telegram = profile.Telegram
	cur.LogoURL = profile.LogoURL
	cur.BannerURL = profile.BannerURL
	cur.UpdatedAt = s.now().UTC()
	s.profiles[profile.TokenAddress] = cur
	return cur, nil
}

func (s *MemoryStore) RecordClaim(_ context.Context, claim entity.Claim) (entity.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profiles[claim.TokenAddress]
	if p.ClaimedBy != "" && p.ClaimedBy != claim.Wallet {
		return entity.Claim{}, entity.ErrAlreadyClaimed
	}
	if _, used := s.signatures[claim.Signature]; used {
		return entity.Claim{}, entity.ErrAlreadyClaimed
	}

	s.upsertUserLocked(claim.Wallet)
	now := s.now().UTC()
	claim.ID = int64(len(s.claims) + 1)
	claim.CreatedAt = now
	s.claims = append(s.claims, claim)
	s.signatures[claim.Signature] = struct{}{}

	p.TokenAddress = claim.TokenAddress
	if p.ClaimedBy == "" {
		p.ClaimedBy = claim.Wallet
		p.ClaimedAt = &now
		p.UpdatedAt = now
	}
	s.profiles[claim.TokenAddress] = p
	return claim, nil
}
