// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"raffle-engine/internal/database"
	"raffle-engine/internal/models"
)

// NewDB returns a migrated sqlite database private to the test. The pool is
// capped at one connection so concurrent transactions serialise.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:                                   logger.Discard,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

// CreatePlayer inserts a player with a default wallet.
func CreatePlayer(t testing.TB, db *gorm.DB) *models.Player {
	t.Helper()

	player := &models.Player{
		ID:       uuid.New(),
		Nickname: "player_" + uuid.NewString()[:8],
	}
	if err := db.Create(player).Error; err != nil {
		t.Fatalf("failed to create player: %v", err)
	}

	wallet := &models.PlayerWallet{
		PlayerID:      player.ID,
		WalletAddress: "wallet_" + player.ID.String()[:12],
		IsDefault:     true,
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	player.Wallets = []models.PlayerWallet{*wallet}
	return player
}

// Fund sets the player's balance of an asset.
func Fund(t testing.TB, db *gorm.DB, playerID uuid.UUID, assetID string, amount int64) {
	t.Helper()

	asset := &models.PlayerAsset{
		PlayerID: playerID,
		AssetID:  assetID,
		Balance:  decimal.NewFromInt(amount),
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to fund player: %v", err)
	}
}

// Balance reads the player's balance of an asset, zero when absent.
func Balance(t testing.TB, db *gorm.DB, playerID uuid.UUID, assetID string) decimal.Decimal {
	t.Helper()

	var assets []models.PlayerAsset
	if err := db.Where("player_id = ? AND asset_id = ?", playerID, assetID).Find(&assets).Error; err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	if len(assets) == 0 {
		return decimal.Zero
	}
	return assets[0].Balance
}

// RaffleOption customises a raffle fixture.
type RaffleOption func(*models.Raffle)

// Delayed turns the fixture into a delayed-reveal raffle that ended and
// waits for its draw.
func Delayed() RaffleOption {
	return func(r *models.Raffle) {
		now := time.Now()
		draw := now.Add(time.Hour)
		r.InstantReveal = false
		r.StartDate = now.Add(-2 * time.Hour)
		r.EndDate = now.Add(-time.Minute)
		r.DrawDate = &draw
	}
}

// CreateRaffle inserts an active, limited, instant-reveal raffle with the
// given prizes and applies opts before saving.
func CreateRaffle(t testing.TB, db *gorm.DB, prizes []models.Prize, opts ...RaffleOption) *models.Raffle {
	t.Helper()

	now := time.Now()
	raffle := &models.Raffle{
		Name:          "Test Raffle",
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		InstantReveal: true,
		IsLimited:     true,
		IsActive:      true,
	}
	for _, opt := range opts {
		opt(raffle)
	}

	total := 0
	for _, p := range prizes {
		total += p.Quantity
	}
	raffle.TotalSlots = total

	if err := db.Create(raffle).Error; err != nil {
		t.Fatalf("failed to create raffle: %v", err)
	}

	for i := range prizes {
		prizes[i].RaffleID = raffle.ID
		prizes[i].IsActive = true
		if prizes[i].Name == "" {
			prizes[i].Name = string(prizes[i].Type)
		}
		if err := db.Create(&prizes[i]).Error; err != nil {
			t.Fatalf("failed to create prize: %v", err)
		}
	}
	raffle.Prizes = prizes
	return raffle
}

// AssetPrize builds an ASSET prize definition.
func AssetPrize(assetID string, amount int64, quantity, order int) models.Prize {
	return models.Prize{
		Type:     models.PrizeTypeAsset,
		AssetID:  &assetID,
		Amount:   decimal.NewFromInt(amount),
		Quantity: quantity,
		Order:    order,
	}
}

// NFTPrize builds an NFT prize definition.
func NFTPrize(collection string, quantity, order int) models.Prize {
	return models.Prize{
		Type:          models.PrizeTypeNFT,
		NFTCollection: &collection,
		NFTQuantity:   1,
		Quantity:      quantity,
		Order:         order,
	}
}

// EmptyPrize builds an EMPTY prize definition.
func EmptyPrize(quantity, order int) models.Prize {
	return models.Prize{
		Type:     models.PrizeTypeEmpty,
		Quantity: quantity,
		Order:    order,
	}
}
