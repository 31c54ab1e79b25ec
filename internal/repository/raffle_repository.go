package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raffle-engine/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying handle
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn inside a transaction. Nested calls become savepoints.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// IsNotFound reports whether err is a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ============================================================================
// Raffles and prizes
// ============================================================================

// CreateRaffle creates a raffle together with its prizes
func (r *Repository) CreateRaffle(ctx context.Context, raffle *models.Raffle) error {
	return r.db.WithContext(ctx).Create(raffle).Error
}

// GetRaffleByID retrieves a raffle by ID
func (r *Repository) GetRaffleByID(ctx context.Context, raffleID uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	err := r.db.WithContext(ctx).Where("id = ?", raffleID).First(&raffle).Error
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

// prizeOrder fixes the slot layout of a pool, ties included
const prizeOrder = "sort_order ASC, created_at ASC, id ASC"

// GetRaffleWithPrizes retrieves a raffle and its active prizes
func (r *Repository) GetRaffleWithPrizes(ctx context.Context, raffleID uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	err := r.db.WithContext(ctx).
		Preload("Prizes", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order(prizeOrder)
		}).
		Where("id = ?", raffleID).
		First(&raffle).Error
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

// GetDrawablePrizes retrieves active prizes that still have quantity left
func (r *Repository) GetDrawablePrizes(ctx context.Context, raffleID uuid.UUID) ([]models.Prize, error) {
	var prizes []models.Prize
	err := r.db.WithContext(ctx).
		Where("raffle_id = ? AND is_active = ? AND quantity > 0", raffleID, true).
		Order(prizeOrder).
		Find(&prizes).Error
	if err != nil {
		return nil, err
	}
	return prizes, nil
}

// DeactivatePrizes soft-deletes every active prize of a raffle
func (r *Repository) DeactivatePrizes(ctx context.Context, raffleID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prize{}).
		Where("raffle_id = ? AND is_active = ?", raffleID, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// CreatePrizes inserts prizes
func (r *Repository) CreatePrizes(ctx context.Context, prizes []models.Prize) error {
	if len(prizes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&prizes).Error
}

// SetTotalSlots overwrites the inventory total of a raffle
func (r *Repository) SetTotalSlots(ctx context.Context, raffleID uuid.UUID, total int) error {
	return r.db.WithContext(ctx).
		Model(&models.Raffle{}).
		Where("id = ?", raffleID).
		Update("total_slots", total).Error
}

// DecrementPrizeQuantity takes one unit of a prize. It returns false when
// the prize ran out before this call.
func (r *Repository) DecrementPrizeQuantity(ctx context.Context, prizeID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prize{}).
		Where("id = ? AND quantity > 0", prizeID).
		Update("quantity", gorm.Expr("quantity - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IncrementParticipants bumps the participant counter and returns the new value
func (r *Repository) IncrementParticipants(ctx context.Context, raffleID uuid.UUID) (int, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Raffle{}).
		Where("id = ?", raffleID).
		Update("total_participants", gorm.Expr("total_participants + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var total int
	err := db.Model(&models.Raffle{}).
		Where("id = ?", raffleID).
		Select("total_participants").
		Scan(&total).Error
	return total, err
}

// ============================================================================
// Entries
// ============================================================================

// IncrementPlayerEntry counts one more entry for the player and returns the
// post-increment count
func (r *Repository) IncrementPlayerEntry(ctx context.Context, raffleID, playerID uuid.UUID) (int, error) {
	db := r.db.WithContext(ctx)

	initial := models.PlayerEntry{
		RaffleID:   raffleID,
		PlayerID:   playerID,
		EntryCount: 1,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "raffle_id"}, {Name: "player_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"entry_count": gorm.Expr("player_entries.entry_count + 1"),
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&initial).Error
	if err != nil {
		return 0, err
	}

	var count int
	err = db.Model(&models.PlayerEntry{}).
		Where("raffle_id = ? AND player_id = ?", raffleID, playerID).
		Select("entry_count").
		Scan(&count).Error
	return count, err
}

// GetPlayerEntryCount returns how many entries the player holds, zero when none
func (r *Repository) GetPlayerEntryCount(ctx context.Context, raffleID, playerID uuid.UUID) (int, error) {
	var entries []models.PlayerEntry
	err := r.db.WithContext(ctx).
		Where("raffle_id = ? AND player_id = ?", raffleID, playerID).
		Limit(1).
		Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return 0, err
	}
	return entries[0].EntryCount, nil
}

// ============================================================================
// Participants
// ============================================================================

// CreateParticipant creates a raffle entry
func (r *Repository) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

// GetParticipant retrieves an entry of a raffle with its prize
func (r *Repository) GetParticipant(ctx context.Context, raffleID, participantID uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Preload("Prize").
		Where("id = ? AND raffle_id = ?", participantID, raffleID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetOldestUnrevealed retrieves the player's oldest drawn but hidden entry
func (r *Repository) GetOldestUnrevealed(ctx context.Context, raffleID, playerID uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Preload("Prize").
		Where("raffle_id = ? AND player_id = ? AND drawn_at IS NOT NULL AND is_revealed = ?", raffleID, playerID, false).
		Order("created_at ASC, id ASC").
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// ListUnrevealedIDs lists the player's drawn but hidden entries, oldest first
func (r *Repository) ListUnrevealedIDs(ctx context.Context, raffleID, playerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("raffle_id = ? AND player_id = ? AND drawn_at IS NOT NULL AND is_revealed = ?", raffleID, playerID, false).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// GetPlayerParticipants lists the given entries of a player in a raffle
func (r *Repository) GetPlayerParticipants(ctx context.Context, raffleID, playerID uuid.UUID, ids []uuid.UUID) ([]models.Participant, error) {
	var participants []models.Participant
	query := r.db.WithContext(ctx).
		Preload("Prize").
		Where("raffle_id = ? AND player_id = ?", raffleID, playerID)
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}
	err := query.Order("created_at ASC, id ASC").Find(&participants).Error
	return participants, err
}

// MarkRevealed flips drawn, hidden entries of a player to revealed and
// returns how many changed
func (r *Repository) MarkRevealed(ctx context.Context, raffleID, playerID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("raffle_id = ? AND player_id = ? AND id IN ?", raffleID, playerID, ids).
		Where("drawn_at IS NOT NULL AND is_revealed = ?", false).
		Updates(map[string]interface{}{
			"is_revealed": true,
			"revealed_at": at,
		})
	return result.RowsAffected, result.Error
}

// ListUndrawnIDs lists entries without a prize, oldest first
func (r *Repository) ListUndrawnIDs(ctx context.Context, raffleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("raffle_id = ? AND drawn_at IS NULL", raffleID).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// CountUndrawn counts entries without a prize
func (r *Repository) CountUndrawn(ctx context.Context, raffleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("raffle_id = ? AND drawn_at IS NULL", raffleID).
		Count(&count).Error
	return count, err
}

// CountParticipants counts entries of a raffle
func (r *Repository) CountParticipants(ctx context.Context, raffleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("raffle_id = ?", raffleID).
		Count(&count).Error
	return count, err
}

// DrawRecord is the draw outcome stored on an entry
type DrawRecord struct {
	PrizeID    uuid.UUID
	SlotNumber int64
	RandomSeed string
	DrawnAt    time.Time
}

// RecordDraw stores a draw on an undrawn entry. It returns false when the
// entry was drawn by someone else first.
func (r *Repository) RecordDraw(ctx context.Context, participantID uuid.UUID, draw DrawRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("id = ? AND drawn_at IS NULL", participantID).
		Updates(map[string]interface{}{
			"prize_id":    draw.PrizeID,
			"slot_number": draw.SlotNumber,
			"random_seed": draw.RandomSeed,
			"drawn_at":    draw.DrawnAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ============================================================================
// Winners
// ============================================================================

// CreateWinner records a non-empty prize award
func (r *Repository) CreateWinner(ctx context.Context, winner *models.Winner) error {
	return r.db.WithContext(ctx).Create(winner).Error
}

// ListPendingWinnerIDs lists PENDING winners of a raffle that have no
// transfer in flight, oldest first, optionally for one player
func (r *Repository) ListPendingWinnerIDs(ctx context.Context, raffleID uuid.UUID, playerID *uuid.UUID) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("raffle_id = ? AND status = ?", raffleID, models.WinnerStatusPending).
		Where("transfer_started_at IS NULL")
	if playerID != nil {
		query = query.Where("player_id = ?", *playerID)
	}

	var ids []uuid.UUID
	err := query.Order("created_at ASC, id ASC").Pluck("id", &ids).Error
	return ids, err
}

// GetWinner retrieves a winner with its prize
func (r *Repository) GetWinner(ctx context.Context, winnerID uuid.UUID) (*models.Winner, error) {
	var winner models.Winner
	err := r.db.WithContext(ctx).
		Preload("Prize").
		Where("id = ?", winnerID).
		First(&winner).Error
	if err != nil {
		return nil, err
	}
	return &winner, nil
}

// GetWinnerByParticipant retrieves the winner created for an entry
func (r *Repository) GetWinnerByParticipant(ctx context.Context, participantID uuid.UUID) (*models.Winner, error) {
	var winner models.Winner
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		First(&winner).Error
	if err != nil {
		return nil, err
	}
	return &winner, nil
}

// ClaimPendingWinner touches a PENDING winner so the current transaction owns
// it. On PostgreSQL the row stays locked until commit. It returns false when
// the winner already left PENDING.
func (r *Repository) ClaimPendingWinner(ctx context.Context, winnerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("id = ? AND status = ?", winnerID, models.WinnerStatusPending).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// StartWinnerTransfer stamps the in-flight marker on a PENDING winner. It
// returns false when the winner left PENDING or a transfer already started.
func (r *Repository) StartWinnerTransfer(ctx context.Context, winnerID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("id = ? AND status = ? AND transfer_started_at IS NULL", winnerID, models.WinnerStatusPending).
		Update("transfer_started_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkWinnerDistributed completes a PENDING winner
func (r *Repository) MarkWinnerDistributed(ctx context.Context, winnerID uuid.UUID, txHash *string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("id = ? AND status = ?", winnerID, models.WinnerStatusPending).
		Updates(map[string]interface{}{
			"status":           models.WinnerStatusDistributed,
			"distributed_at":   at,
			"transaction_hash": txHash,
			"failure_reason":   nil,
		}).Error
}

// MarkWinnerFailed fails a PENDING winner with a reason
func (r *Repository) MarkWinnerFailed(ctx context.Context, winnerID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("id = ? AND status = ?", winnerID, models.WinnerStatusPending).
		Updates(map[string]interface{}{
			"status":         models.WinnerStatusFailed,
			"failure_reason": reason,
		}).Error
}

// RequeueFailedWinners moves FAILED winners of a raffle back to PENDING and
// clears their transfer marker. An empty id list requeues all of them.
func (r *Repository) RequeueFailedWinners(ctx context.Context, raffleID uuid.UUID, winnerIDs []uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("raffle_id = ? AND status = ?", raffleID, models.WinnerStatusFailed)
	if len(winnerIDs) > 0 {
		query = query.Where("id IN ?", winnerIDs)
	}

	result := query.Updates(map[string]interface{}{
		"status":              models.WinnerStatusPending,
		"failure_reason":      nil,
		"transfer_started_at": nil,
	})
	return result.RowsAffected, result.Error
}

// ListWinners retrieves winners of a raffle, optionally filtered by status
func (r *Repository) ListWinners(ctx context.Context, raffleID uuid.UUID, status *models.WinnerStatus) ([]models.Winner, error) {
	query := r.db.WithContext(ctx).
		Preload("Prize").
		Where("raffle_id = ?", raffleID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var winners []models.Winner
	err := query.Order("created_at ASC, id ASC").Find(&winners).Error
	return winners, err
}

// RafflesWithPendingWinners lists raffles that still owe payouts
func (r *Repository) RafflesWithPendingWinners(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("status = ? AND transfer_started_at IS NULL", models.WinnerStatusPending).
		Distinct("raffle_id").
		Pluck("raffle_id", &ids).Error
	return ids, err
}

// ============================================================================
// Players
// ============================================================================

// GetPlayerByID retrieves a player with wallets
func (r *Repository) GetPlayerByID(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	var player models.Player
	err := r.db.WithContext(ctx).
		Preload("Wallets").
		Where("id = ?", playerID).
		First(&player).Error
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// GetPlayerByWallet retrieves the player owning a wallet address
func (r *Repository) GetPlayerByWallet(ctx context.Context, walletAddress string) (*models.Player, error) {
	var wallet models.PlayerWallet
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return r.GetPlayerByID(ctx, wallet.PlayerID)
}

// CreatePlayer creates a player and its wallets
func (r *Repository) CreatePlayer(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Create(player).Error
}

// UpdatePlayerRole changes a player's role
func (r *Repository) UpdatePlayerRole(ctx context.Context, playerID uuid.UUID, role models.PlayerRole) error {
	return r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("role", role).Error
}

// GetDefaultWallet retrieves the wallet NFT prizes are sent to
func (r *Repository) GetDefaultWallet(ctx context.Context, playerID uuid.UUID) (*models.PlayerWallet, error) {
	var wallet models.PlayerWallet
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND is_default = ?", playerID, true).
		Order("created_at ASC").
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ============================================================================
// Audit
// ============================================================================

// CreateAdminLog records an operator action
func (r *Repository) CreateAdminLog(ctx context.Context, entry *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListAdminLogs retrieves the latest operator actions on a resource
func (r *Repository) ListAdminLogs(ctx context.Context, resourceID uuid.UUID, limit int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
