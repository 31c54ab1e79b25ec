package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

// RaffleService manages raffles and their prize pools
type RaffleService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewRaffleService(repo *repository.Repository, log *zap.Logger) *RaffleService {
	return &RaffleService{
		repo: repo,
		log:  log.Named("raffle"),
		now:  time.Now,
	}
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validatePrizes(reqs []models.CreatePrizeRequest) error {
	if len(reqs) == 0 {
		return validationError("at least one prize is required")
	}
	for i, p := range reqs {
		if strings.TrimSpace(p.Name) == "" {
			return validationError("prize %d: name is required", i)
		}
		if !p.Type.Valid() {
			return validationError("prize %d: unknown type %q", i, p.Type)
		}
		if p.Quantity <= 0 {
			return validationError("prize %d: quantity must be positive", i)
		}
		switch p.Type {
		case models.PrizeTypeAsset:
			if p.AssetID == nil || *p.AssetID == "" {
				return validationError("prize %d: asset_id is required", i)
			}
			if !p.Amount.IsPositive() {
				return validationError("prize %d: amount must be positive", i)
			}
		case models.PrizeTypeNFT:
			if p.NFTCollection == nil || !blockchain.IsValidAddress(*p.NFTCollection) {
				return validationError("prize %d: nft_collection must be a valid mint address", i)
			}
			if p.NFTQuantity < 0 {
				return validationError("prize %d: nft_quantity must not be negative", i)
			}
		}
	}
	return nil
}

func buildPrizes(raffleID uuid.UUID, reqs []models.CreatePrizeRequest) ([]models.Prize, int) {
	prizes := make([]models.Prize, 0, len(reqs))
	total := 0
	for _, p := range reqs {
		prize := models.Prize{
			RaffleID: raffleID,
			Name:     strings.TrimSpace(p.Name),
			Type:     p.Type,
			Quantity: p.Quantity,
			Order:    p.Order,
			IsActive: true,
		}
		switch p.Type {
		case models.PrizeTypeAsset:
			prize.AssetID = p.AssetID
			prize.Amount = p.Amount
		case models.PrizeTypeNFT:
			prize.NFTCollection = p.NFTCollection
			prize.NFTQuantity = p.NFTQuantity
			if prize.NFTQuantity == 0 {
				prize.NFTQuantity = 1
			}
		}
		prizes = append(prizes, prize)
		total += p.Quantity
	}
	return prizes, total
}

func validateRaffle(req *models.CreateRaffleRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return validationError("name is required")
	}
	if !req.EndDate.After(req.StartDate) {
		return validationError("end_date must be after start_date")
	}
	if req.DrawDate != nil && req.DrawDate.Before(req.EndDate) {
		return validationError("draw_date must not be before end_date")
	}
	if req.MaxParticipants != nil && *req.MaxParticipants <= 0 {
		return validationError("max_participants must be positive")
	}
	if req.MaxEntriesPerPlayer != nil && *req.MaxEntriesPerPlayer <= 0 {
		return validationError("max_entries_per_player must be positive")
	}
	if req.EntryFeeAmount.IsNegative() {
		return validationError("entry_fee_amount must not be negative")
	}
	if req.EntryFeeAmount.IsPositive() && (req.EntryFeeAssetID == nil || *req.EntryFeeAssetID == "") {
		return validationError("entry_fee_asset_id is required with an entry fee")
	}
	if req.ChainAddress != nil && !blockchain.IsValidAddress(*req.ChainAddress) {
		return validationError("chain_address must be a valid account address")
	}
	return validatePrizes(req.Prizes)
}

// CreateRaffle creates a raffle with its prize pool. The inventory total is
// the sum of prize quantities.
func (s *RaffleService) CreateRaffle(ctx context.Context, req *models.CreateRaffleRequest) (*models.RaffleResponse, error) {
	if err := validateRaffle(req); err != nil {
		return nil, err
	}

	raffle := &models.Raffle{
		ID:                   uuid.New(),
		Name:                 strings.TrimSpace(req.Name),
		Description:          req.Description,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		DrawDate:             req.DrawDate,
		InstantReveal:        req.InstantReveal,
		MaxParticipants:      req.MaxParticipants,
		MaxEntriesPerPlayer:  req.MaxEntriesPerPlayer,
		AllowMultipleEntries: req.AllowMultipleEntries,
		EntryFeeAssetID:      req.EntryFeeAssetID,
		EntryFeeAmount:       req.EntryFeeAmount,
		IsLimited:            req.IsLimited == nil || *req.IsLimited,
		IsActive:             true,
		ChainAddress:         req.ChainAddress,
	}
	raffle.Prizes, raffle.TotalSlots = buildPrizes(raffle.ID, req.Prizes)

	if err := s.repo.CreateRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	recordAdminAction(ctx, s.repo, s.log, "CREATE_RAFFLE", raffle.ID, map[string]interface{}{
		"name":        raffle.Name,
		"total_slots": raffle.TotalSlots,
	})
	s.log.Info("raffle created",
		zap.String("raffle_id", raffle.ID.String()),
		zap.Int("total_slots", raffle.TotalSlots),
		zap.Bool("instant_reveal", raffle.InstantReveal))

	return s.toResponse(raffle), nil
}

// ReplacePrizes swaps the prize pool of a raffle that has not started yet.
// Old prizes are deactivated, not deleted.
func (s *RaffleService) ReplacePrizes(ctx context.Context, raffleID uuid.UUID, reqs []models.CreatePrizeRequest) (*models.RaffleResponse, error) {
	if err := validatePrizes(reqs); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		raffle, err := tx.GetRaffleByID(ctx, raffleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrRaffleNotFound
			}
			return fmt.Errorf("failed to load raffle: %w", err)
		}
		if raffle.StatusAt(s.now()) != models.RaffleStatusUpcoming {
			return ErrRaffleStarted
		}

		if _, err := tx.DeactivatePrizes(ctx, raffleID); err != nil {
			return fmt.Errorf("failed to deactivate prizes: %w", err)
		}
		prizes, total := buildPrizes(raffleID, reqs)
		if err := tx.CreatePrizes(ctx, prizes); err != nil {
			return fmt.Errorf("failed to create prizes: %w", err)
		}
		return tx.SetTotalSlots(ctx, raffleID, total)
	})
	if err != nil {
		return nil, err
	}

	recordAdminAction(ctx, s.repo, s.log, "REPLACE_PRIZES", raffleID, map[string]interface{}{
		"prizes": len(reqs),
	})
	return s.GetRaffle(ctx, raffleID)
}

// GetRaffle returns a raffle with its active prizes and derived status
func (s *RaffleService) GetRaffle(ctx context.Context, raffleID uuid.UUID) (*models.RaffleResponse, error) {
	raffle, err := s.repo.GetRaffleWithPrizes(ctx, raffleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}
	return s.toResponse(raffle), nil
}

func (s *RaffleService) toResponse(raffle *models.Raffle) *models.RaffleResponse {
	return &models.RaffleResponse{
		Raffle: *raffle,
		Status: raffle.StatusAt(s.now()),
	}
}

// ListMyEntries returns the authenticated player's entries. Prizes of hidden
// entries are withheld.
func (s *RaffleService) ListMyEntries(ctx context.Context, raffleID uuid.UUID) ([]models.Participant, error) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	entries, err := s.repo.GetPlayerParticipants(ctx, raffleID, session.PlayerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	for i := range entries {
		if !entries[i].IsRevealed {
			entries[i].PrizeID = nil
			entries[i].Prize = nil
			entries[i].SlotNumber = nil
		}
	}
	return entries, nil
}

// ListWinners returns the winners of a raffle, optionally by status
func (s *RaffleService) ListWinners(ctx context.Context, raffleID uuid.UUID, status *models.WinnerStatus) ([]models.Winner, error) {
	if status != nil {
		switch *status {
		case models.WinnerStatusPending, models.WinnerStatusDistributed, models.WinnerStatusFailed:
		default:
			return nil, validationError("unknown winner status %q", *status)
		}
	}
	if _, err := s.GetRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	winners, err := s.repo.ListWinners(ctx, raffleID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to load winners: %w", err)
	}
	return winners, nil
}

// RequeueFailedWinners moves FAILED winners back to PENDING so the next
// distribution run retries them. No ids means every FAILED winner.
func (s *RaffleService) RequeueFailedWinners(ctx context.Context, raffleID uuid.UUID, winnerIDs []uuid.UUID) (int64, error) {
	if _, err := s.GetRaffle(ctx, raffleID); err != nil {
		return 0, err
	}

	n, err := s.repo.RequeueFailedWinners(ctx, raffleID, winnerIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue winners: %w", err)
	}

	recordAdminAction(ctx, s.repo, s.log, "REQUEUE_FAILED_WINNERS", raffleID, map[string]interface{}{
		"requested": len(winnerIDs),
		"requeued":  n,
	})
	s.log.Info("failed winners requeued", zap.String("raffle_id", raffleID.String()), zap.Int64("count", n))
	return n, nil
}
