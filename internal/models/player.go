package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlayerRole string

const (
	PlayerRolePlayer PlayerRole = "player"
	PlayerRoleAdmin  PlayerRole = "admin"
)

// Player represents a raffle participant
type Player struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Nickname  string         `gorm:"uniqueIndex;size:64;not null" json:"nickname"`
	Role      PlayerRole     `gorm:"size:20;not null" json:"role"`
	Wallets   []PlayerWallet `gorm:"foreignKey:PlayerID" json:"wallets,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Role == "" {
		p.Role = PlayerRolePlayer
	}
	return nil
}

// PlayerWallet is an on-chain address owned by a player. NFT prizes go to
// the wallet flagged as default.
type PlayerWallet struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PlayerID      uuid.UUID `gorm:"type:uuid;not null;index" json:"player_id"`
	WalletAddress string    `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	Blockchain    string    `gorm:"size:20;not null" json:"blockchain"`
	IsDefault     bool      `gorm:"not null" json:"is_default"`
	IsVerified    bool      `gorm:"not null" json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (PlayerWallet) TableName() string {
	return "player_wallets"
}

func (w *PlayerWallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Blockchain == "" {
		w.Blockchain = "SOLANA"
	}
	return nil
}

// WalletLoginRequest is the body of a signed wallet login
type WalletLoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Message       string `json:"message" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}
