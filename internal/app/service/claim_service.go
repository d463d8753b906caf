package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/utils"
)

// DefaultMaxImageBytes caps profile image uploads.
const DefaultMaxImageBytes = 2 << 20

// Image kinds a profile accepts.
const (
	ImageLogo   = "logo"
	ImageBanner = "banner"
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ClaimRequest proves that Wallet controls the key that signed ClaimMessage.
type ClaimRequest struct {
	TokenAddress string `json:"tokenAddress"`
	Wallet       string `json:"wallet"`
	Signature    string `json:"signature"`
}

// ProfileUpdate carries the editable profile fields plus the owner's signature over
// ProfileMessage.
type ProfileUpdate struct {
	Wallet      string `json:"wallet"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Twitter     string `json:"twitter"`
	Telegram    string `json:"telegram"`
}

// ClaimMessage is the text a wallet signs to claim a token profile.
func ClaimMessage(tokenAddress, wallet string) string {
	return fmt.Sprintf("token_screener claim\ntoken: %s\nwallet: %s", tokenAddress, wallet)
}

// ProfileMessage is the text the owner signs to edit a claimed profile.
func ProfileMessage(tokenAddress, wallet string) string {
	return fmt.Sprintf("token_screener profile update\ntoken: %s\nwallet: %s", tokenAddress, wallet)
}

// VerifySignature checks a base58 ed25519 signature of message by a base58 wallet.
func VerifySignature(wallet, signature, message string) error {
	pub, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return fmt.Errorf("%w: wallet: %v", entity.ErrInvalidAddress, err)
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidSignature, err)
	}
	if !sig.Verify(pub, []byte(message)) {
		return entity.ErrInvalidSignature
	}
	return nil
}

// ClaimService runs the token profile claim workflow.
type ClaimService struct {
	repo          port.ClaimRepository
	blobs         port.BlobStore
	maxImageBytes int64
	logger        port.Logger
	now           func() time.Time
}

// NewClaimService creates the workflow. blobs may be nil, which disables image uploads.
func NewClaimService(repo port.ClaimRepository, blobs port.BlobStore, maxImageBytes int64, logger port.Logger) *ClaimService {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &ClaimService{
		repo:          repo,
		blobs:         blobs,
		maxImageBytes: maxImageBytes,
		logger:        logger,
		now:           time.Now,
	}
}

// Profile returns the token's profile, or an empty unclaimed one when none exists.
func (s *ClaimService) Profile(ctx context.Context, tokenAddress string) (entity.TokenProfile, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return entity.TokenProfile{}, fmt.Errorf("%w: token address is required", entity.ErrInvalidInput)
	}
	p, err := s.repo.GetProfile(ctx, tokenAddress)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.TokenProfile{TokenAddress: tokenAddress}, nil
	}
	return p, err
}

// Claim verifies the signature and records the claim.
func (s *ClaimService) Claim(ctx context.Context, req ClaimRequest) (entity.Claim, error) {
	req.TokenAddress = strings.TrimSpace(req.TokenAddress)
	req.Wallet = strings.TrimSpace(req.Wallet)
	if req.TokenAddress == "" {
		return entity.Claim{}, fmt.Errorf("%w: token address is required", entity.ErrInvalidInput)
	}
	if err := utils.ValidateSolanaAddress(req.Wallet); err != nil {
		return entity.Claim{}, err
	}

	msg := ClaimMessage(req.TokenAddress, req.Wallet)
	if err := VerifySignature(req.Wallet, req.Signature, msg); err != nil {
		s.logger.Warn("Rejected token claim", "token", req.TokenAddress, "wallet_address", req.Wallet, "error", err)
		return entity.Claim{}, err
	}

	if _, err := s.repo.UpsertUser(ctx, req.Wallet); err != nil {
		return entity.Claim{}, fmt.Errorf("upsert user %s: %w", req.Wallet, err)
	}
	claim, err := s.repo.RecordClaim(ctx, entity.Claim{
		TokenAddress: req.TokenAddress,
		Wallet:       req.Wallet,
		Message:      msg,
		Signature:    req.Signature,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return entity.Claim{}, err
	}
	s.logger.Info("Token profile claimed", "token", claim.TokenAddress, "wallet_address", claim.Wallet)
	return claim, nil
}

// authorize checks that wallet signed the profile message and owns the profile.
func (s *ClaimService) authorize(ctx context.Context, tokenAddress, wallet, signature string) (entity.TokenProfile, error) {
	if err := VerifySignature(wallet, signature, ProfileMessage(tokenAddress, wallet)); err != nil {
		return entity.TokenProfile{}, err
	}
	current, err := s.repo.GetProfile(ctx, tokenAddress)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.TokenProfile{}, fmt.Errorf("%w: profile is not claimed", entity.ErrForbidden)
	}
	if err != nil {
		return entity.TokenProfile{}, err
	}
	if current.ClaimedBy != wallet {
		return entity.TokenProfile{}, fmt.Errorf("%w: wallet does not own this profile", entity.ErrForbidden)
	}
	return current, nil
}

// UpdateProfile replaces the editable fields of a profile owned by the signing wallet.
func (s *ClaimService) UpdateProfile(ctx context.Context, tokenAddress string, upd ProfileUpdate) (entity.TokenProfile, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	current, err := s.authorize(ctx, tokenAddress, strings.TrimSpace(upd.Wallet), upd.Signature)
	if err != nil {
		return entity.TokenProfile{}, err
	}
	current.Description = strings.TrimSpace(upd.Description)
	current.Website = strings.TrimSpace(upd.Website)
	current.Twitter = strings.TrimSpace(upd.Twitter)
	current.Telegram = strings.TrimSpace(upd.Telegram)
	return s.repo.SaveProfile(ctx, current)
}

// UploadImage stores a logo or banner for a profile owned by the signing wallet and
// points the profile at it.
func (s *ClaimService) UploadImage(ctx context.Context, tokenAddress, kind, wallet, signature string, r io.Reader) (entity.TokenProfile, error) {
	if s.blobs == nil {
		return entity.TokenProfile{}, fmt.Errorf("%w: image storage is not configured", entity.ErrFeatureUnavailable)
	}
	if kind != ImageLogo && kind != ImageBanner {
		return entity.TokenProfile{}, fmt.Errorf("%w: image kind must be %q or %q", entity.ErrInvalidInput, ImageLogo, ImageBanner)
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	current, err := s.authorize(ctx, tokenAddress, strings.TrimSpace(wallet), signature)
	if err != nil {
		return entity.TokenProfile{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxImageBytes+1))
	if err != nil {
		return entity.TokenProfile{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return entity.TokenProfile{}, fmt.Errorf("%w: image exceeds %d bytes", entity.ErrInvalidInput, s.maxImageBytes)
	}
	ext, ok := imageExtensions[http.DetectContentType(data)]
	if !ok {
		return entity.TokenProfile{}, fmt.Errorf("%w: unsupported image type", entity.ErrInvalidInput)
	}

	key := fmt.Sprintf("%s-%s.%s", tokenAddress, kind, ext)
	url, err := s.blobs.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return entity.TokenProfile{}, fmt.Errorf("store image %s: %w", key, err)
	}
	if kind == ImageLogo {
		current.LogoURL = url
	} else {
		current.BannerURL = url
	}
	return s.repo.SaveProfile(ctx, current)
}

// Image opens a stored profile image.
func (s *ClaimService) Image(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.blobs == nil {
		return nil, entity.ErrNotFound
	}
	return s.blobs.Get(ctx, key)
}
