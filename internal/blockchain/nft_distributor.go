package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"raffle-engine/internal/config"
)

var ErrNoServerWallet = errors.New("server wallet not configured")

// TransferResult holds the outcome of an on-chain prize transfer
type TransferResult struct {
	Signature string `json:"signature"`
}

// NFTTransferer moves NFT prizes from the server wallet to a player wallet
type NFTTransferer interface {
	Transfer(ctx context.Context, collection string, quantity int, toAddress string) (*TransferResult, error)
}

// IsValidAddress validates a Solana account address format
func IsValidAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// NFTDistributor sends SPL tokens of a prize collection from the server wallet
type NFTDistributor struct {
	rpcClient    *rpc.Client
	serverWallet *solana.Wallet
	log          *zap.Logger
}

// NewNFTDistributor loads the server wallet and connects to the configured RPC endpoint
func NewNFTDistributor(cfg config.SolanaConfig, log *zap.Logger) (*NFTDistributor, error) {
	if cfg.ServerPrivateKey == "" {
		return nil, ErrNoServerWallet
	}

	wallet, err := solana.WalletFromPrivateKeyBase58(cfg.ServerPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load server wallet: %w", err)
	}

	log = log.Named("nft")
	log.Info("server wallet loaded",
		zap.String("pubkey", wallet.PublicKey().String()),
		zap.String("network", cfg.Network))

	return &NFTDistributor{
		rpcClient:    rpc.New(cfg.RPCEndpoint()),
		serverWallet: wallet,
		log:          log,
	}, nil
}

// PublicKey returns the server wallet address
func (d *NFTDistributor) PublicKey() solana.PublicKey {
	return d.serverWallet.PublicKey()
}

// Transfer sends quantity tokens of the collection mint to the owner's
// associated token account, creating it when missing.
func (d *NFTDistributor) Transfer(ctx context.Context, collection string, quantity int, toAddress string) (*TransferResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid transfer quantity %d", quantity)
	}
	mint, err := solana.PublicKeyFromBase58(collection)
	if err != nil {
		return nil, fmt.Errorf("invalid collection address: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(toAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	payer := d.serverWallet.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	var instructions []solana.Instruction

	exists, err := d.accountExists(ctx, destination)
	if err != nil {
		return nil, err
	}
	if !exists {
		createIx, err := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build token account instruction: %w", err)
		}
		instructions = append(instructions, createIx)
	}

	transferIx, err := token.NewTransferInstruction(
		uint64(quantity),
		source,
		destination,
		payer,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}
	instructions = append(instructions, transferIx)

	blockhash, err := d.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &d.serverWallet.PrivateKey
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := d.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	d.log.Info("nft transferred",
		zap.String("collection", collection),
		zap.Int("quantity", quantity),
		zap.String("to", toAddress),
		zap.String("signature", sig.String()))

	return &TransferResult{Signature: sig.String()}, nil
}

func (d *NFTDistributor) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := d.rpcClient.GetAccountInfo(ctx, account)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to load token account: %w", err)
}
