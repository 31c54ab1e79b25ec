package blockchain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"raffle-engine/internal/config"
)

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress(solana.NewWallet().PublicKey().String()))
	assert.True(t, IsValidAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"))
	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0xdeadbeef"))
}

func TestNewNFTDistributor(t *testing.T) {
	_, err := NewNFTDistributor(config.SolanaConfig{Network: "devnet"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoServerWallet)

	_, err = NewNFTDistributor(config.SolanaConfig{ServerPrivateKey: "bogus"}, zap.NewNop())
	assert.Error(t, err)

	wallet := solana.NewWallet()
	d, err := NewNFTDistributor(config.SolanaConfig{
		Network:          "devnet",
		ServerPrivateKey: wallet.PrivateKey.String(),
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), d.PublicKey())
}

func TestTransferRejectsBadInput(t *testing.T) {
	wallet := solana.NewWallet()
	d, err := NewNFTDistributor(config.SolanaConfig{ServerPrivateKey: wallet.PrivateKey.String()}, zap.NewNop())
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey().String()
	to := solana.NewWallet().PublicKey().String()

	_, err = d.Transfer(context.Background(), mint, 0, to)
	assert.ErrorContains(t, err, "invalid transfer quantity")

	_, err = d.Transfer(context.Background(), "bad", 1, to)
	assert.ErrorContains(t, err, "invalid collection address")

	_, err = d.Transfer(context.Background(), mint, 1, "bad")
	assert.ErrorContains(t, err, "invalid recipient address")
}

func TestDiagnosticsUnreachableRPC(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewDiagnostics(config.SolanaConfig{
		Network:          "devnet",
		RPCURL:           url,
		ServerPrivateKey: "bogus",
		ProgramID:        "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
	}, zap.NewNop())

	res := d.Run(context.Background())
	assert.False(t, res.RPCConnected)
	assert.NotEmpty(t, res.RPCError)
	assert.Equal(t, url, res.RPCURL)
	assert.True(t, res.ServerWalletSet)
	assert.Contains(t, res.ServerWalletError, "invalid key")
	assert.True(t, res.ProgramIDValid)
}

func TestDiagnosticsWithoutWallet(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewDiagnostics(config.SolanaConfig{RPCURL: url}, zap.NewNop()).Run(context.Background())
	assert.False(t, res.ServerWalletSet)
	assert.Equal(t, "SOLANA_SERVER_PRIVATE_KEY not set", res.ServerWalletError)
	assert.False(t, res.ProgramIDValid)
}
