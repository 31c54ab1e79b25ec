package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is a single raffle entry. Draw fields stay empty until the
// entry is drawn, either at entry time or by a batch draw.
type Participant struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RaffleID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_participants_raffle_player" json:"raffle_id"`
	PlayerID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_participants_raffle_player" json:"player_id"`
	PrizeID    *uuid.UUID `gorm:"type:uuid;index" json:"prize_id,omitempty"`
	Prize      *Prize     `gorm:"foreignKey:PrizeID" json:"prize,omitempty"`
	DrawnAt    *time.Time `gorm:"index" json:"drawn_at,omitempty"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`
	IsRevealed bool       `gorm:"not null;default:false" json:"is_revealed"`
	SlotNumber *int64     `json:"slot_number,omitempty"`
	RandomSeed *string    `gorm:"size:64" json:"random_seed,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Participant) TableName() string {
	return "participants"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsDrawn reports whether a prize has been drawn for this entry.
func (p *Participant) IsDrawn() bool {
	return p.DrawnAt != nil
}

// BulkRevealRequest represents the request body of a bulk reveal
type BulkRevealRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	BatchSize      int         `json:"batch_size"`
}

// RevealRequest represents the request body of a single reveal
type RevealRequest struct {
	ParticipantID *uuid.UUID `json:"participant_id"`
}
