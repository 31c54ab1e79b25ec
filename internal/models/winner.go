package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WinnerStatus string

const (
	WinnerStatusPending     WinnerStatus = "PENDING"
	WinnerStatusDistributed WinnerStatus = "DISTRIBUTED"
	WinnerStatusFailed      WinnerStatus = "FAILED"
)

// Winner records a non-empty prize awarded to a player and its payout state.
type Winner struct {
	ID                uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID          uuid.UUID    `gorm:"type:uuid;not null;index:idx_winners_raffle_status" json:"raffle_id"`
	PrizeID           uuid.UUID    `gorm:"type:uuid;not null;index" json:"prize_id"`
	Prize             *Prize       `gorm:"foreignKey:PrizeID" json:"prize,omitempty"`
	ParticipantID     uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"participant_id"`
	PlayerID          uuid.UUID    `gorm:"type:uuid;not null;index" json:"player_id"`
	Status            WinnerStatus `gorm:"size:20;not null;default:PENDING;index:idx_winners_raffle_status" json:"status"`
	DistributedAt     *time.Time   `json:"distributed_at,omitempty"`
	TransactionHash   *string      `gorm:"size:255" json:"transaction_hash,omitempty"`
	FailureReason     *string      `gorm:"type:text" json:"failure_reason,omitempty"`
	// TransferStartedAt is committed before an on-chain payout is sent. A
	// PENDING winner carrying it is in flight and is never rescanned.
	TransferStartedAt *time.Time   `json:"transfer_started_at,omitempty"`
	CreatedAt         time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (Winner) TableName() string {
	return "winners"
}

func (w *Winner) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// DistributeRequest represents the request body of a distribution run
type DistributeRequest struct {
	PlayerID  *uuid.UUID `json:"player_id"`
	BatchSize int        `json:"batch_size"`
}

// RequeueRequest represents the request to move FAILED winners back to PENDING
type RequeueRequest struct {
	WinnerIDs []uuid.UUID `json:"winner_ids"`
}
