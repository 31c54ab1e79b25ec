package blockchain

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	sigs    []*rpc.TransactionSignature
	logs    map[solana.Signature][]string
	listErr error
	limit   int
}

func (f *fakeSource) GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	if opts != nil && opts.Limit != nil {
		f.limit = *opts.Limit
	}
	return f.sigs, f.listErr
}

func (f *fakeSource) GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	logs, ok := f.logs[sig]
	if !ok {
		return &rpc.GetTransactionResult{}, nil
	}
	return &rpc.GetTransactionResult{Meta: &rpc.TransactionMeta{LogMessages: logs}}, nil
}

func testSignature(b byte) solana.Signature {
	raw := make([]byte, 64)
	raw[0] = b
	return solana.SignatureFromBytes(raw)
}

func TestParseRaffleEvents(t *testing.T) {
	logs := []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		`Program log: RAFFLE_EVENT {"type":"PARTICIPATED","player":"p1","entry_id":"e1"}`,
		`Program log: RAFFLE_EVENT {"type":"DRAWN","entry_id":"e1","prize_id":"x"}`,
		`Program log: RAFFLE_EVENT {"type":"PRIZE_TRANSFERRED","winner_id":"w1","recipient":"r1","quantity":2}`,
		`Program log: RAFFLE_EVENT {"type":"UNKNOWN"}`,
		`Program log: RAFFLE_EVENT {not json`,
		"Program log: something else",
	}

	events, malformed := ParseRaffleEvents(logs)
	require.Len(t, events, 3)
	assert.Equal(t, 2, malformed)
	assert.Equal(t, EventParticipated, events[0].Type)
	assert.Equal(t, "p1", events[0].Player)
	assert.Equal(t, EventDrawn, events[1].Type)
	assert.Equal(t, EventPrizeTransferred, events[2].Type)
	assert.Equal(t, "w1", events[2].WinnerID)
	assert.Equal(t, 2, events[2].Quantity)
}

func TestParseRaffleEventsEmpty(t *testing.T) {
	events, malformed := ParseRaffleEvents(nil)
	assert.Empty(t, events)
	assert.Zero(t, malformed)
}

func TestSnapshot(t *testing.T) {
	ok1, ok2, failed := testSignature(1), testSignature(2), testSignature(3)
	source := &fakeSource{
		sigs: []*rpc.TransactionSignature{
			{Signature: ok1},
			{Signature: ok2},
			{Signature: failed, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
			nil,
		},
		logs: map[solana.Signature][]string{
			ok1: {
				`Program log: RAFFLE_EVENT {"type":"PARTICIPATED","entry_id":"e1"}`,
				`Program log: RAFFLE_EVENT {"type":"PARTICIPATED","entry_id":"e2"}`,
				`Program log: RAFFLE_EVENT {"type":"DRAWN","entry_id":"e1"}`,
			},
			ok2: {
				`Program log: RAFFLE_EVENT {"type":"PRIZE_TRANSFERRED","winner_id":"w1","recipient":"r1","quantity":1}`,
				`Program log: RAFFLE_EVENT garbage`,
			},
			failed: {
				`Program log: RAFFLE_EVENT {"type":"PARTICIPATED","entry_id":"e3"}`,
			},
		},
	}

	r := newReconciler(source, zap.NewNop())
	address := solana.NewWallet().PublicKey().String()

	state, err := r.Snapshot(context.Background(), address, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSnapshotLimit, source.limit)
	assert.Equal(t, address, state.Address)
	assert.Equal(t, 3, state.TransactionsScanned)
	assert.Equal(t, 1, state.FailedTransactions)
	assert.Equal(t, 2, state.Participants)
	assert.Equal(t, 1, state.Draws)
	assert.Equal(t, 1, state.MalformedEvents)
	require.Len(t, state.Transfers, 1)
	assert.Equal(t, ok2.String(), state.Transfers[0].Signature)
	assert.Equal(t, "w1", state.Transfers[0].WinnerID)
}

func TestSnapshotRespectsLimit(t *testing.T) {
	source := &fakeSource{}
	r := newReconciler(source, zap.NewNop())

	state, err := r.Snapshot(context.Background(), solana.NewWallet().PublicKey().String(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, source.limit)
	assert.Empty(t, state.Transfers)
}

func TestSnapshotErrors(t *testing.T) {
	r := newReconciler(&fakeSource{}, zap.NewNop())
	_, err := r.Snapshot(context.Background(), "not-an-address", 10)
	assert.Error(t, err)

	r = newReconciler(&fakeSource{listErr: errors.New("rpc down")}, zap.NewNop())
	_, err = r.Snapshot(context.Background(), solana.NewWallet().PublicKey().String(), 10)
	assert.ErrorContains(t, err, "rpc down")
}
