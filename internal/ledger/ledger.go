// Package ledger owns player asset balances. Every call runs on the
// transaction handle supplied by the caller so balance changes commit or
// roll back together with the surrounding raffle work.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raffle-engine/internal/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidOperation    = errors.New("unknown asset operation")
)

// Ledger validates and moves player balances.
type Ledger interface {
	ValidatePlayerAsset(ctx context.Context, tx *gorm.DB, playerID uuid.UUID, assetID string, amount decimal.Decimal) error
	UpdatePlayerAsset(ctx context.Context, tx *gorm.DB, playerID uuid.UUID, assetID string, amount decimal.Decimal, op models.AssetOperation, reason string) error
}

// Service is the gorm backed Ledger.
type Service struct{}

func New() *Service {
	return &Service{}
}

// ValidatePlayerAsset fails with ErrInsufficientBalance unless the player
// holds at least amount of the asset.
func (s *Service) ValidatePlayerAsset(ctx context.Context, tx *gorm.DB, playerID uuid.UUID, assetID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	var assets []models.PlayerAsset
	err := tx.WithContext(ctx).
		Where("player_id = ? AND asset_id = ?", playerID, assetID).
		Limit(1).
		Find(&assets).Error
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	if len(assets) == 0 || assets[0].Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	return nil
}

// UpdatePlayerAsset applies op to the balance and journals it. SUBTRACT is a
// single conditional decrement and never drives a balance negative.
func (s *Service) UpdatePlayerAsset(
	ctx context.Context,
	tx *gorm.DB,
	playerID uuid.UUID,
	assetID string,
	amount decimal.Decimal,
	op models.AssetOperation,
	reason string,
) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	db := tx.WithContext(ctx)

	switch op {
	case models.AssetOperationSubtract:
		result := db.Model(&models.PlayerAsset{}).
			Where("player_id = ? AND asset_id = ? AND balance >= ?", playerID, assetID, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to debit balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

	case models.AssetOperationAdd:
		initial := models.PlayerAsset{
			PlayerID: playerID,
			AssetID:  assetID,
			Balance:  amount,
		}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player_id"}, {Name: "asset_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":    gorm.Expr("player_assets.balance + ?", amount),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&initial).Error
		if err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	entry := models.AssetTransaction{
		PlayerID:  playerID,
		AssetID:   assetID,
		Operation: op,
		Amount:    amount,
		Reason:    reason,
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to journal balance change: %w", err)
	}
	return nil
}
