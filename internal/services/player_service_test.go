package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/models"
)

type testWallet struct {
	address string
	priv    ed25519.PrivateKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testWallet{address: base58.Encode(pub), priv: priv}
}

func (w testWallet) sign(message string) []byte {
	return ed25519.Sign(w.priv, []byte(message))
}

// login builds a request signing a message issued at the given time
func (w testWallet) login(issuedAt time.Time, encode func([]byte) string) *models.WalletLoginRequest {
	message := LoginMessage(w.address, issuedAt)
	return &models.WalletLoginRequest{
		WalletAddress: w.address,
		Message:       message,
		Signature:     encode(w.sign(message)),
	}
}

func TestWalletLoginRegistersPlayer(t *testing.T) {
	auth.InitJWT("test-secret", time.Hour)
	_, repo := newTestRepo(t)
	svc := NewPlayerService(repo, nil, zap.NewNop())
	wallet := newTestWallet(t)

	res, err := svc.WalletLogin(context.Background(), wallet.login(time.Now(), base58.Encode))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.Player.Nickname)
	assert.Equal(t, models.PlayerRolePlayer, res.Player.Role)

	claims, err := auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Player.ID.String(), claims.PlayerID)

	stored, err := repo.GetDefaultWallet(context.Background(), res.Player.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.address, stored.WalletAddress)
	assert.True(t, stored.IsVerified)

	again, err := svc.WalletLogin(context.Background(), wallet.login(time.Now().Add(-2*time.Second), hex.EncodeToString))
	require.NoError(t, err)
	assert.Equal(t, res.Player.ID, again.Player.ID)
}

func TestWalletLoginAdminWallet(t *testing.T) {
	auth.InitJWT("test-secret", time.Hour)
	_, repo := newTestRepo(t)
	wallet := newTestWallet(t)

	res, err := NewPlayerService(repo, nil, zap.NewNop()).WalletLogin(context.Background(), wallet.login(time.Now(), base58.Encode))
	require.NoError(t, err)
	assert.Equal(t, models.PlayerRolePlayer, res.Player.Role)

	// promoted once the wallet is listed as admin
	admins := NewPlayerService(repo, []string{" " + wallet.address + " "}, zap.NewNop())
	res, err = admins.WalletLogin(context.Background(), wallet.login(time.Now().Add(-time.Second), base58.Encode))
	require.NoError(t, err)
	assert.Equal(t, models.PlayerRoleAdmin, res.Player.Role)

	claims, err := auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestWalletLoginRejectsBadSignatures(t *testing.T) {
	auth.InitJWT("test-secret", time.Hour)
	_, repo := newTestRepo(t)
	svc := NewPlayerService(repo, nil, zap.NewNop())
	wallet := newTestWallet(t)
	other := newTestWallet(t)
	message := LoginMessage(wallet.address, time.Now())

	_, err := svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: wallet.address,
		Message:       message,
		Signature:     base58.Encode(other.sign(message)),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, CodeInvalidSignature, ErrorCode(err))

	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: wallet.address,
		Message:       message,
		Signature:     base58.Encode(wallet.sign("something else")),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: wallet.address,
		Message:       message,
		Signature:     "zz",
	})
	assert.ErrorIs(t, err, ErrValidation)

	bogus := LoginMessage("not-a-wallet", time.Now())
	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: "not-a-wallet",
		Message:       bogus,
		Signature:     base58.Encode(wallet.sign(bogus)),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWalletLoginMessageWindow(t *testing.T) {
	auth.InitJWT("test-secret", time.Hour)
	_, repo := newTestRepo(t)
	svc := NewPlayerService(repo, nil, zap.NewNop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	wallet := newTestWallet(t)
	other := newTestWallet(t)

	_, err := svc.WalletLogin(context.Background(), wallet.login(now.Add(-LoginMessageTTL-time.Second), base58.Encode))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = svc.WalletLogin(context.Background(), wallet.login(now.Add(time.Minute), base58.Encode))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// a message issued for another wallet cannot be reused here
	foreign := LoginMessage(other.address, now)
	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: wallet.address,
		Message:       foreign,
		Signature:     base58.Encode(wallet.sign(foreign)),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: wallet.address,
		Message:       loginMessagePrefix,
		Signature:     base58.Encode(wallet.sign(loginMessagePrefix)),
	})
	assert.ErrorIs(t, err, ErrValidation)

	req := wallet.login(now.Add(-time.Minute), base58.Encode)
	_, err = svc.WalletLogin(context.Background(), req)
	require.NoError(t, err)

	// the same signed message is accepted once
	_, err = svc.WalletLogin(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = svc.WalletLogin(context.Background(), &models.WalletLoginRequest{
		WalletAddress: req.WalletAddress,
		Message:       req.Message,
		Signature:     hex.EncodeToString(wallet.sign(req.Message)),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// used messages are forgotten once their window closes
	now = now.Add(LoginMessageTTL + time.Minute)
	_, err = svc.WalletLogin(context.Background(), wallet.login(now, base58.Encode))
	require.NoError(t, err)
	assert.Len(t, svc.usedMessages, 1)
}

func TestIssueLoginMessage(t *testing.T) {
	_, repo := newTestRepo(t)
	svc := NewPlayerService(repo, nil, zap.NewNop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	wallet := newTestWallet(t)

	challenge, err := svc.IssueLoginMessage(wallet.address)
	require.NoError(t, err)
	assert.Equal(t, LoginMessage(wallet.address, now), challenge.Message)
	assert.Equal(t, now.Add(LoginMessageTTL), challenge.ExpiresAt)

	address, issuedAt, err := parseLoginMessage(challenge.Message)
	require.NoError(t, err)
	assert.Equal(t, wallet.address, address)
	assert.True(t, issuedAt.Equal(now))

	_, err = svc.IssueLoginMessage("not-a-wallet")
	assert.ErrorIs(t, err, ErrValidation)
}
