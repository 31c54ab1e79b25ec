package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AssetOperation string

const (
	AssetOperationAdd      AssetOperation = "ADD"
	AssetOperationSubtract AssetOperation = "SUBTRACT"
)

// PlayerAsset is a player's balance of one asset
type PlayerAsset struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PlayerID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_player_assets_player_asset" json:"player_id"`
	AssetID   string          `gorm:"size:64;not null;uniqueIndex:idx_player_assets_player_asset" json:"asset_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,8);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (PlayerAsset) TableName() string {
	return "player_assets"
}

func (a *PlayerAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AssetTransaction is the append-only journal of balance changes
type AssetTransaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PlayerID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"player_id"`
	AssetID   string          `gorm:"size:64;not null" json:"asset_id"`
	Operation AssetOperation  `gorm:"size:10;not null" json:"operation"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"amount"`
	Reason    string          `gorm:"type:text" json:"reason"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

func (AssetTransaction) TableName() string {
	return "asset_transactions"
}

func (t *AssetTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
