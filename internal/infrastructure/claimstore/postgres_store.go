package claimstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// PostgresStore implements port.ClaimRepository on Postgres.
type PostgresStore struct {
	pool *Pool
}

func NewPostgresStore(pool *Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ port.ClaimRepository = (*PostgresStore)(nil)

const profileColumns = `token_address, description, website, twitter, telegram, logo_url, banner_url,
	COALESCE(claimed_by, ''), claimed_at, verified, promoted, updated_at`

func scanProfile(row pgx.Row) (entity.TokenProfile, error) {
	var p entity.TokenProfile
	err := row.Scan(
		&p.TokenAddress,
		&p.Description,
		&p.Website,
		&p.Twitter,
		&p.Telegram,
		&p.LogoURL,
		&p.BannerURL,
		&p.ClaimedBy,
		&p.ClaimedAt,
		&p.Verified,
		&p.Promoted,
		&p.UpdatedAt,
	)
	return p, err
}

func (s *PostgresStore) UpsertUser(ctx context.Context, wallet string) (entity.User, error) {
	return upsertUser(ctx, s.pool, wallet)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsertUser(ctx context.Context, q querier, wallet string) (entity.User, error) {
	u := entity.User{Wallet: wallet}
	err := q.QueryRow(ctx, `
		INSERT INTO users (wallet) VALUES ($1)
		ON CONFLICT (wallet) DO UPDATE SET wallet = EXCLUDED.wallet
		RETURNING created_at
	`, wallet).Scan(&u.CreatedAt)
	if err != nil {
		return entity.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, tokenAddress string) (entity.TokenProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM token_profiles WHERE token_address = $1`, tokenAddress)
	p, err := scanProfile(row)
	if err != nil {
		if isNotFoundError(err) {
			return entity.TokenProfile{}, entity.ErrNotFound
		}
		return entity.TokenProfile{}, fmt.Errorf("get token profile: %w", err)
	}
	return p, nil
}

// SaveProfile writes the editable fields. Claim, verification and promotion state are
// left untouched.
func (s *PostgresStore) SaveProfile(ctx context.Context, profile entity.TokenProfile) (entity.TokenProfile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO token_profiles (token_address, description, website, twitter, telegram, logo_url, banner_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (token_address) DO UPDATE SET
			description = EXCLUDED.description,
			website     = EXCLUDED.website,
			twitter     = EXCLUDED.twitter,
			telegram    = EXCLUDED.telegram,
			logo_url    = EXCLUDED.logo_url,
			banner_url  = EXCLUDED.banner_url,
			updated_at  = now()
		RETURNING `+profileColumns,
		profile.TokenAddress,
		profile.Description,
		profile.Website,
		profile.Twitter,
		profile.Telegram,
		profile.LogoURL,
		profile.BannerURL,
	)
	saved, err := scanProfile(row)
	if err != nil {
		return entity.TokenProfile{}, fmt.Errorf("save token profile: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) RecordClaim(ctx context.Context, claim entity.Claim) (entity.Claim, error) {
	err := pgx.BeginFunc(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		if _, err := upsertUser(ctx, tx, claim.Wallet); err != nil {
			return err
		}

		// Lock or create the profile row so concurrent claims serialize on it.
		if _, err := tx.Exec(ctx, `
			INSERT INTO token_profiles (token_address) VALUES ($1)
			ON CONFLICT (token_address) DO NOTHING
		`, claim.TokenAddress); err != nil {
			return fmt.Errorf("ensure token profile: %w", err)
		}
		var owner string
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(claimed_by, '') FROM token_profiles WHERE token_address = $1 FOR UPDATE
		`, claim.TokenAddress).Scan(&owner); err != nil {
			return fmt.Errorf("lock token profile: %w", err)
		}
		if owner != "" && owner != claim.Wallet {
			return entity.ErrAlreadyClaimed
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO claims (token_address, wallet, message, signature)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, claim.TokenAddress, claim.Wallet, claim.Message, claim.Signature).Scan(&claim.ID, &claim.CreatedAt); err != nil {
			if isDuplicateKeyError(err) {
				return entity.ErrAlreadyClaimed
			}
			return fmt.Errorf("insert claim: %w", err)
		}

		if owner == "" {
			if _, err := tx.Exec(ctx, `
				UPDATE token_profiles SET claimed_by = $2, claimed_at = $3, updated_at = now()
				WHERE token_address = $1
			`, claim.TokenAddress, claim.Wallet, claim.CreatedAt); err != nil {
				return fmt.Errorf("mark profile claimed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return entity.Claim{}, err
	}
	claim.CreatedAt = claim.CreatedAt.UTC()
	return claim, nil
}
