package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
	"raffle-engine/internal/testutil"
)

func newTestRepo(t *testing.T) (*gorm.DB, *repository.Repository) {
	t.Helper()
	db := testutil.NewDB(t)
	return db, repository.NewRepository(db)
}

func playerCtx(playerID uuid.UUID) context.Context {
	return auth.WithSession(context.Background(), &auth.Session{PlayerID: playerID, Role: "player"})
}

func adminCtx(playerID uuid.UUID) context.Context {
	return auth.WithSession(context.Background(), &auth.Session{PlayerID: playerID, Role: auth.RoleAdmin})
}

// addEntries inserts undrawn entries for a delayed raffle, one per player
func addEntries(t *testing.T, db *gorm.DB, raffle *models.Raffle, players ...*models.Player) []models.Participant {
	t.Helper()
	out := make([]models.Participant, 0, len(players))
	for _, p := range players {
		entry := models.Participant{RaffleID: raffle.ID, PlayerID: p.ID}
		if err := db.Create(&entry).Error; err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		out = append(out, entry)
	}
	if err := db.Model(&models.Raffle{}).Where("id = ?", raffle.ID).
		Update("total_participants", gorm.Expr("total_participants + ?", len(players))).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	return out
}

func reloadWinner(t *testing.T, db *gorm.DB, id uuid.UUID) models.Winner {
	t.Helper()
	var w models.Winner
	if err := db.First(&w, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload winner: %v", err)
	}
	return w
}

func reloadRaffle(t *testing.T, db *gorm.DB, id uuid.UUID) models.Raffle {
	t.Helper()
	var r models.Raffle
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload raffle: %v", err)
	}
	return r
}

type nftCall struct {
	Collection string
	Quantity   int
	To         string
}

type fakeNFT struct {
	mu    sync.Mutex
	calls []nftCall
	err   error
	block bool
	// onSend runs once per transfer before the result is returned
	onSend func()
}

func (f *fakeNFT) Transfer(ctx context.Context, collection string, quantity int, to string) (*blockchain.TransferResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, nftCall{Collection: collection, Quantity: quantity, To: to})
	n := len(f.calls)
	err := f.err
	onSend := f.onSend
	block := f.block
	f.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &blockchain.TransferResult{Signature: fmt.Sprintf("sig-%d", n)}, nil
}

func (f *fakeNFT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// cancelOnCall returns a context and a clock; the context is cancelled by
// the nth reading of the clock
func cancelOnCall(t *testing.T, parent context.Context, n int) (context.Context, func() time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(parent)
	t.Cleanup(cancel)

	var mu sync.Mutex
	calls := 0
	return ctx, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == n {
			cancel()
		}
		return time.Now()
	}
}
