package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RaffleStatus string

const (
	RaffleStatusUpcoming    RaffleStatus = "UPCOMING"
	RaffleStatusActive      RaffleStatus = "ACTIVE"
	RaffleStatusWaitingDraw RaffleStatus = "WAITING_DRAW"
	RaffleStatusCompleted   RaffleStatus = "COMPLETED"
	RaffleStatusEnded       RaffleStatus = "ENDED"
)

// Raffle is a time-boxed prize draw. Its status is derived from the
// schedule and never persisted.
type Raffle struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	Description          string          `gorm:"type:text" json:"description"`
	StartDate            time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate              time.Time       `gorm:"not null;index" json:"end_date"`
	DrawDate             *time.Time      `json:"draw_date,omitempty"`
	InstantReveal        bool            `gorm:"not null;default:false" json:"instant_reveal"`
	MaxParticipants      *int            `json:"max_participants,omitempty"`
	MaxEntriesPerPlayer  *int            `json:"max_entries_per_player,omitempty"`
	AllowMultipleEntries bool            `gorm:"not null;default:false" json:"allow_multiple_entries"`
	EntryFeeAssetID      *string         `gorm:"size:64" json:"entry_fee_asset_id,omitempty"`
	EntryFeeAmount       decimal.Decimal `gorm:"type:decimal(18,8);not null;default:0" json:"entry_fee_amount"`
	IsLimited            bool            `gorm:"not null" json:"is_limited"`
	TotalSlots           int             `gorm:"not null;default:0" json:"total_slots"`
	TotalParticipants    int             `gorm:"not null;default:0" json:"total_participants"`
	IsActive             bool            `gorm:"not null" json:"is_active"`
	ChainAddress         *string         `gorm:"size:64" json:"chain_address,omitempty"`
	Prizes               []Prize         `gorm:"foreignKey:RaffleID" json:"prizes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (Raffle) TableName() string {
	return "raffles"
}

func (r *Raffle) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// StatusAt derives the raffle status for the given instant.
func (r *Raffle) StatusAt(now time.Time) RaffleStatus {
	switch {
	case !r.IsActive:
		return RaffleStatusEnded
	case now.Before(r.StartDate):
		return RaffleStatusUpcoming
	case now.Before(r.EndDate):
		return RaffleStatusActive
	case r.DrawDate != nil && now.Before(*r.DrawDate):
		return RaffleStatusWaitingDraw
	default:
		return RaffleStatusCompleted
	}
}

// HasEntryFee reports whether participating costs anything.
func (r *Raffle) HasEntryFee() bool {
	return r.EntryFeeAssetID != nil && *r.EntryFeeAssetID != "" && r.EntryFeeAmount.IsPositive()
}

// PlayerEntry counts entries per (raffle, player). The counter row is the
// serialisation point for duplicate and entry-limit checks.
type PlayerEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_player_entries_raffle_player" json:"raffle_id"`
	PlayerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_player_entries_raffle_player" json:"player_id"`
	EntryCount int       `gorm:"not null;default:0" json:"entry_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (PlayerEntry) TableName() string {
	return "player_entries"
}

func (e *PlayerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RaffleResponse is the API view of a raffle including its derived status.
type RaffleResponse struct {
	Raffle
	Status RaffleStatus `json:"status"`
}

// CreateRaffleRequest represents the request to create a raffle with its prize pool
type CreateRaffleRequest struct {
	Name                 string               `json:"name" binding:"required"`
	Description          string               `json:"description"`
	StartDate            time.Time            `json:"start_date" binding:"required"`
	EndDate              time.Time            `json:"end_date" binding:"required"`
	DrawDate             *time.Time           `json:"draw_date"`
	InstantReveal        bool                 `json:"instant_reveal"`
	MaxParticipants      *int                 `json:"max_participants"`
	MaxEntriesPerPlayer  *int                 `json:"max_entries_per_player"`
	AllowMultipleEntries bool                 `json:"allow_multiple_entries"`
	EntryFeeAssetID      *string              `json:"entry_fee_asset_id"`
	EntryFeeAmount       decimal.Decimal      `json:"entry_fee_amount"`
	IsLimited            *bool                `json:"is_limited"`
	ChainAddress         *string              `json:"chain_address"`
	Prizes               []CreatePrizeRequest `json:"prizes" binding:"required,min=1,dive"`
}
