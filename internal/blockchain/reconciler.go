package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"raffle-engine/internal/config"
)

const (
	raffleEventPrefix = "Program log: RAFFLE_EVENT "

	DefaultSnapshotLimit = 1000
	maxSnapshotLimit     = 1000
)

type ChainEventType string

const (
	EventParticipated     ChainEventType = "PARTICIPATED"
	EventDrawn            ChainEventType = "DRAWN"
	EventPrizeTransferred ChainEventType = "PRIZE_TRANSFERRED"
)

// ChainEvent is one RAFFLE_EVENT emitted by the raffle program
type ChainEvent struct {
	Type       ChainEventType `json:"type"`
	Player     string         `json:"player,omitempty"`
	EntryID    string         `json:"entry_id,omitempty"`
	PrizeID    string         `json:"prize_id,omitempty"`
	WinnerID   string         `json:"winner_id,omitempty"`
	Recipient  string         `json:"recipient,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Quantity   int            `json:"quantity,omitempty"`
	Signature  string         `json:"signature,omitempty"`
}

// ChainTransfer is a prize transfer observed on chain
type ChainTransfer struct {
	Signature  string `json:"signature"`
	WinnerID   string `json:"winner_id,omitempty"`
	Recipient  string `json:"recipient"`
	Collection string `json:"collection,omitempty"`
	Quantity   int    `json:"quantity"`
}

// ChainRaffleState is the raffle state rebuilt from program logs
type ChainRaffleState struct {
	Address             string          `json:"address"`
	Participants        int             `json:"participants"`
	Draws               int             `json:"draws"`
	Transfers           []ChainTransfer `json:"transfers"`
	TransactionsScanned int             `json:"transactions_scanned"`
	FailedTransactions  int             `json:"failed_transactions"`
	MalformedEvents     int             `json:"malformed_events"`
}

// Apply folds an event into the state
func (s *ChainRaffleState) Apply(ev ChainEvent) {
	switch ev.Type {
	case EventParticipated:
		s.Participants++
	case EventDrawn:
		s.Draws++
	case EventPrizeTransferred:
		s.Transfers = append(s.Transfers, ChainTransfer{
			Signature:  ev.Signature,
			WinnerID:   ev.WinnerID,
			Recipient:  ev.Recipient,
			Collection: ev.Collection,
			Quantity:   ev.Quantity,
		})
	}
}

// ParseRaffleEvents extracts RAFFLE_EVENT payloads from transaction logs.
// Lines that carry the prefix but do not decode into a known event are
// counted as malformed.
func ParseRaffleEvents(logs []string) ([]ChainEvent, int) {
	var events []ChainEvent
	malformed := 0
	for _, line := range logs {
		if !strings.HasPrefix(line, raffleEventPrefix) {
			continue
		}
		var ev ChainEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, raffleEventPrefix)), &ev); err != nil {
			malformed++
			continue
		}
		switch ev.Type {
		case EventParticipated, EventDrawn, EventPrizeTransferred:
			events = append(events, ev)
		default:
			malformed++
		}
	}
	return events, malformed
}

// ChainStateReader rebuilds raffle state from the chain
type ChainStateReader interface {
	Snapshot(ctx context.Context, address string, limit int) (*ChainRaffleState, error)
}

type transactionSource interface {
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Reconciler reads raffle program logs. It never sends transactions.
type Reconciler struct {
	source transactionSource
	log    *zap.Logger
}

func NewReconciler(cfg config.SolanaConfig, log *zap.Logger) *Reconciler {
	return newReconciler(rpc.New(cfg.RPCEndpoint()), log)
}

func newReconciler(source transactionSource, log *zap.Logger) *Reconciler {
	return &Reconciler{source: source, log: log.Named("reconciler")}
}

// Snapshot scans up to limit recent transactions of the raffle account
func (r *Reconciler) Snapshot(ctx context.Context, address string, limit int) (*ChainRaffleState, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid raffle account: %w", err)
	}
	if limit <= 0 || limit > maxSnapshotLimit {
		limit = DefaultSnapshotLimit
	}

	sigs, err := r.source.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}

	state := &ChainRaffleState{Address: address, Transfers: []ChainTransfer{}}
	maxVersion := uint64(0)
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		state.TransactionsScanned++
		if sig.Err != nil {
			state.FailedTransactions++
			continue
		}

		tx, err := r.source.GetTransaction(ctx, sig.Signature, &rpc.GetTransactionOpts{
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get transaction %s: %w", sig.Signature, err)
		}
		if tx == nil || tx.Meta == nil {
			continue
		}

		events, malformed := ParseRaffleEvents(tx.Meta.LogMessages)
		state.MalformedEvents += malformed
		for _, ev := range events {
			ev.Signature = sig.Signature.String()
			state.Apply(ev)
		}
	}

	r.log.Debug("chain snapshot built",
		zap.String("address", address),
		zap.Int("transactions", state.TransactionsScanned),
		zap.Int("participants", state.Participants),
		zap.Int("transfers", len(state.Transfers)))

	return state, nil
}
