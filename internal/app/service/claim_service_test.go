package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/blobstore"
	"token_screener/internal/infrastructure/claimstore"
	"token_screener/internal/pkg/logger"
)

const claimToken = "MintTokenA"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func sign(t *testing.T, key solana.PrivateKey, msg string) string {
	t.Helper()
	sig, err := key.Sign([]byte(msg))
	require.NoError(t, err)
	return sig.String()
}

func newClaimService(t *testing.T) *ClaimService {
	t.Helper()
	blobs, err := blobstore.NewFileStore(t.TempDir(), "/claims/blobs")
	require.NoError(t, err)
	return NewClaimService(claimstore.NewMemoryStore(nil), blobs, 64, logger.Nop())
}

func TestClaimService_ClaimAndEdit(t *testing.T) {
	svc := newClaimService(t)
	ctx := context.Background()
	owner := solana.NewWallet().PrivateKey
	wallet := owner.PublicKey().String()

	p, err := svc.Profile(ctx, claimToken)
	require.NoError(t, err)
	assert.Empty(t, p.ClaimedBy)

	claim, err := svc.Claim(ctx, ClaimRequest{
		TokenAddress: claimToken,
		Wallet:       wallet,
		Signature:    sign(t, owner, ClaimMessage(claimToken, wallet)),
	})
	require.NoError(t, err)
	assert.Equal(t, wallet, claim.Wallet)

	p, err = svc.Profile(ctx, claimToken)
	require.NoError(t, err)
	assert.Equal(t, wallet, p.ClaimedBy)

	updated, err := svc.UpdateProfile(ctx, claimToken, ProfileUpdate{
		Wallet:      wallet,
		Signature:   sign(t, owner, ProfileMessage(claimToken, wallet)),
		Description: " community token ",
		Website:     "https://example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "community token", updated.Description)
	assert.Equal(t, wallet, updated.ClaimedBy)
}

func TestClaimService_RejectsBadSignatures(t *testing.T) {
	svc := newClaimService(t)
	ctx := context.Background()
	owner := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey
	wallet := owner.PublicKey().String()

	_, err := svc.Claim(ctx, ClaimRequest{
		TokenAddress: claimToken,
		Wallet:       wallet,
		Signature:    sign(t, other, ClaimMessage(claimToken, wallet)),
	})
	assert.ErrorIs(t, err, entity.ErrInvalidSignature)

	_, err = svc.Claim(ctx, ClaimRequest{
		TokenAddress: claimToken,
		Wallet:       wallet,
		Signature:    sign(t, owner, ClaimMessage("OtherToken", wallet)),
	})
	assert.ErrorIs(t, err, entity.ErrInvalidSignature)

	_, err = svc.Claim(ctx, ClaimRequest{TokenAddress: claimToken, Wallet: wallet, Signature: "not base58!"})
	assert.ErrorIs(t, err, entity.ErrInvalidSignature)

	_, err = svc.Claim(ctx, ClaimRequest{TokenAddress: claimToken, Wallet: "0xabc", Signature: "x"})
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
}

func TestClaimService_SecondWalletCannotClaimOrEdit(t *testing.T) {
	svc := newClaimService(t)
	ctx := context.Background()
	owner := solana.NewWallet().PrivateKey
	intruder := solana.NewWallet().PrivateKey
	ownerWallet := owner.PublicKey().String()
	intruderWallet := intruder.PublicKey().String()

	_, err := svc.Claim(ctx, ClaimRequest{TokenAddress: claimToken, Wallet: ownerWallet, Signature: sign(t, owner, ClaimMessage(claimToken, ownerWallet))})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, ClaimRequest{TokenAddress: claimToken, Wallet: intruderWallet, Signature: sign(t, intruder, ClaimMessage(claimToken, intruderWallet))})
	assert.ErrorIs(t, err, entity.ErrAlreadyClaimed)

	_, err = svc.UpdateProfile(ctx, claimToken, ProfileUpdate{
		Wallet:    intruderWallet,
		Signature: sign(t, intruder, ProfileMessage(claimToken, intruderWallet)),
	})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = svc.UpdateProfile(ctx, "Unclaimed", ProfileUpdate{
		Wallet:    ownerWallet,
		Signature: sign(t, owner, ProfileMessage("Unclaimed", ownerWallet)),
	})
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestClaimService_UploadImage(t *testing.T) {
	svc := newClaimService(t)
	ctx := context.Background()
	owner := solana.NewWallet().PrivateKey
	wallet := owner.PublicKey().String()
	_, err := svc.Claim(ctx, ClaimRequest{TokenAddress: claimToken, Wallet: wallet, Signature: sign(t, owner, ClaimMessage(claimToken, wallet))})
	require.NoError(t, err)
	editSig := sign(t, owner, ProfileMessage(claimToken, wallet))

	p, err := svc.UploadImage(ctx, claimToken, ImageLogo, wallet, editSig, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "/claims/blobs/"+claimToken+"-logo.png", p.LogoURL)

	rc, err := svc.Image(ctx, claimToken+"-logo.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, err = svc.UploadImage(ctx, claimToken, ImageBanner, wallet, editSig, bytes.NewReader([]byte("plain text, not an image")))
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.UploadImage(ctx, claimToken, ImageBanner, wallet, editSig, bytes.NewReader(bytes.Repeat(pngHeader, 10)))
	assert.ErrorIs(t, err, entity.ErrInvalidInput, "uploads over the size cap are rejected")

	_, err = svc.UploadImage(ctx, claimToken, "avatar", wallet, editSig, bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
