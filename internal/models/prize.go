package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PrizeType string

const (
	PrizeTypeAsset PrizeType = "ASSET"
	PrizeTypeNFT   PrizeType = "NFT"
	PrizeTypeEmpty PrizeType = "EMPTY"
)

// Valid reports whether t is a known prize type.
func (t PrizeType) Valid() bool {
	switch t {
	case PrizeTypeAsset, PrizeTypeNFT, PrizeTypeEmpty:
		return true
	}
	return false
}

// Prize is one entry of a raffle's prize pool. Quantity doubles as the draw
// weight in slots. Edits deactivate the old row instead of deleting it.
type Prize struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"raffle_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Type          PrizeType       `gorm:"size:20;not null" json:"type"`
	AssetID       *string         `gorm:"size:64" json:"asset_id,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,8);not null;default:0" json:"amount"`
	NFTCollection *string         `gorm:"size:64" json:"nft_collection,omitempty"`
	NFTQuantity   int             `gorm:"not null;default:0" json:"nft_quantity"`
	Quantity      int             `gorm:"not null;default:0" json:"quantity"`
	Order         int             `gorm:"column:sort_order;not null;default:0" json:"order"`
	IsActive      bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Prize) TableName() string {
	return "prizes"
}

func (p *Prize) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CreatePrizeRequest describes one prize of a new or edited prize pool
type CreatePrizeRequest struct {
	Name          string          `json:"name" binding:"required"`
	Type          PrizeType       `json:"type" binding:"required,oneof=ASSET NFT EMPTY"`
	AssetID       *string         `json:"asset_id"`
	Amount        decimal.Decimal `json:"amount"`
	NFTCollection *string         `json:"nft_collection"`
	NFTQuantity   int             `json:"nft_quantity"`
	Quantity      int             `json:"quantity" binding:"required,min=1"`
	Order         int             `json:"order"`
}
