package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raffle-engine/internal/config"
)

var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// DiagnosticResult holds the result of a payout connectivity check
type DiagnosticResult struct {
	Network           string          `json:"network"`
	RPCConnected      bool            `json:"rpc_connected"`
	RPCURL            string          `json:"rpc_url"`
	RPCError          string          `json:"rpc_error,omitempty"`
	LatestBlockhash   string          `json:"latest_blockhash,omitempty"`
	ServerWalletSet   bool            `json:"server_wallet_set"`
	ServerWallet      string          `json:"server_wallet,omitempty"`
	ServerWalletError string          `json:"server_wallet_error,omitempty"`
	ServerBalanceSOL  decimal.Decimal `json:"server_balance_sol"`
	ProgramID         string          `json:"program_id,omitempty"`
	ProgramIDValid    bool            `json:"program_id_valid"`
	Timestamp         string          `json:"timestamp"`
}

// Diagnostics checks RPC connectivity and the payout wallet
type Diagnostics struct {
	cfg       config.SolanaConfig
	rpcClient *rpc.Client
	log       *zap.Logger
}

func NewDiagnostics(cfg config.SolanaConfig, log *zap.Logger) *Diagnostics {
	return &Diagnostics{
		cfg:       cfg,
		rpcClient: rpc.New(cfg.RPCEndpoint()),
		log:       log.Named("diagnostics"),
	}
}

// Run never fails; every problem is reported in the result
func (d *Diagnostics) Run(ctx context.Context) *DiagnosticResult {
	result := &DiagnosticResult{
		Network:   d.cfg.Network,
		RPCURL:    d.cfg.RPCEndpoint(),
		ProgramID: d.cfg.ProgramID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	blockhash, err := d.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		result.RPCError = err.Error()
		d.log.Warn("rpc check failed", zap.String("rpc_url", result.RPCURL), zap.Error(err))
	} else {
		result.RPCConnected = true
		result.LatestBlockhash = blockhash.Value.Blockhash.String()
	}

	if d.cfg.ServerPrivateKey == "" {
		result.ServerWalletError = "SOLANA_SERVER_PRIVATE_KEY not set"
	} else {
		result.ServerWalletSet = true
		key, err := solana.PrivateKeyFromBase58(d.cfg.ServerPrivateKey)
		if err != nil {
			result.ServerWalletError = fmt.Sprintf("invalid key: %v", err)
		} else {
			result.ServerWallet = key.PublicKey().String()
			if result.RPCConnected {
				if balance, err := d.rpcClient.GetBalance(ctx, key.PublicKey(), rpc.CommitmentConfirmed); err == nil {
					result.ServerBalanceSOL = decimal.NewFromInt(int64(balance.Value)).Div(lamportsPerSOL)
				}
			}
		}
	}

	if d.cfg.ProgramID != "" {
		result.ProgramIDValid = IsValidAddress(d.cfg.ProgramID)
	}

	d.log.Info("diagnostics completed",
		zap.Bool("rpc_connected", result.RPCConnected),
		zap.Bool("server_wallet_set", result.ServerWalletSet))

	return result
}
