package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/ledger"
	"raffle-engine/internal/metrics"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

// PrizeDistributor pays out PENDING winners
type PrizeDistributor interface {
	DistributePrizes(ctx context.Context, raffleID uuid.UUID, opts DistributeOptions) (*DistributionResult, error)
}

// ParticipationResult is the outcome of one raffle entry
type ParticipationResult struct {
	Participant *models.Participant `json:"participant"`
	Prize       *models.Prize       `json:"prize,omitempty"`
	Winner      *models.Winner      `json:"winner,omitempty"`
	EntryCount  int                 `json:"entry_count"`
}

// ParticipationService enters players into raffles
type ParticipationService struct {
	repo        *repository.Repository
	ledger      ledger.Ledger
	distributor PrizeDistributor
	log         *zap.Logger
	now         func() time.Time
}

func NewParticipationService(repo *repository.Repository, l ledger.Ledger, distributor PrizeDistributor, log *zap.Logger) *ParticipationService {
	return &ParticipationService{
		repo:        repo,
		ledger:      l,
		distributor: distributor,
		log:         log.Named("participation"),
		now:         time.Now,
	}
}

// checkEntryCount validates the post-increment entry count of a player
func checkEntryCount(raffle *models.Raffle, count int) error {
	if !raffle.AllowMultipleEntries && count > 1 {
		return ErrDuplicateEntry
	}
	if raffle.MaxEntriesPerPlayer != nil && count > *raffle.MaxEntriesPerPlayer {
		return ErrEntryLimitExceeded
	}
	return nil
}

// Participate enters the authenticated player into a raffle. Entry counter,
// participant counter, fee debit, instant draw and the entry itself commit
// together or not at all. Winners of instant draws are paid out afterwards on
// a best-effort basis.
func (s *ParticipationService) Participate(ctx context.Context, raffleID uuid.UUID) (*ParticipationResult, error) {
	result, err := s.participate(ctx, raffleID)
	metrics.RecordParticipation(participationLabel(err))
	return result, err
}

func participationLabel(err error) string {
	if err == nil {
		return "OK"
	}
	return ErrorCode(err)
}

func (s *ParticipationService) participate(ctx context.Context, raffleID uuid.UUID) (*ParticipationResult, error) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	playerID := session.PlayerID

	raffle, err := s.loadActiveRaffle(ctx, s.repo, raffleID)
	if err != nil {
		return nil, err
	}

	// Cheap rejections before opening a transaction. Each is enforced again
	// inside it.
	count, err := s.repo.GetPlayerEntryCount(ctx, raffleID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry count: %w", err)
	}
	if err := checkEntryCount(raffle, count+1); err != nil {
		return nil, err
	}
	if raffle.MaxParticipants != nil && raffle.TotalParticipants >= *raffle.MaxParticipants {
		return nil, ErrCapacityExceeded
	}
	if raffle.HasEntryFee() {
		err := s.ledger.ValidatePlayerAsset(ctx, s.repo.DB(), playerID, *raffle.EntryFeeAssetID, raffle.EntryFeeAmount)
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return nil, ErrInsufficientFee
		}
		if err != nil {
			return nil, fmt.Errorf("failed to validate entry fee: %w", err)
		}
	}

	result := &ParticipationResult{}
	var drawn *drawnPrize

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		raffle, err := s.loadActiveRaffle(ctx, tx, raffleID)
		if err != nil {
			return err
		}

		count, err := tx.IncrementPlayerEntry(ctx, raffleID, playerID)
		if err != nil {
			return fmt.Errorf("failed to count entry: %w", err)
		}
		if err := checkEntryCount(raffle, count); err != nil {
			return err
		}
		result.EntryCount = count

		total, err := tx.IncrementParticipants(ctx, raffleID)
		if err != nil {
			return fmt.Errorf("failed to count participant: %w", err)
		}
		if raffle.MaxParticipants != nil && total > *raffle.MaxParticipants {
			return ErrCapacityExceeded
		}

		if raffle.HasEntryFee() {
			reason := fmt.Sprintf("raffle %s entry fee", raffleID)
			err := s.ledger.UpdatePlayerAsset(ctx, tx.DB(), playerID, *raffle.EntryFeeAssetID, raffle.EntryFeeAmount, models.AssetOperationSubtract, reason)
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return ErrInsufficientFee
			}
			if err != nil {
				return fmt.Errorf("failed to debit entry fee: %w", err)
			}
		}

		now := s.now()
		participant := &models.Participant{
			ID:       uuid.New(),
			RaffleID: raffleID,
			PlayerID: playerID,
		}

		if raffle.InstantReveal {
			drawn, err = drawFromPool(ctx, tx, raffle)
			if err != nil {
				return err
			}
			prizeID := drawn.Prize.ID
			slot := drawn.SlotNumber
			seed := drawn.Seed
			participant.PrizeID = &prizeID
			participant.SlotNumber = &slot
			participant.RandomSeed = &seed
			participant.DrawnAt = &now
			participant.RevealedAt = &now
			participant.IsRevealed = true
		}

		if err := tx.CreateParticipant(ctx, participant); err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
		result.Participant = participant

		if drawn != nil {
			prize := drawn.Prize
			result.Prize = &prize
			participant.Prize = &prize

			if winner := newWinner(raffleID, participant, drawn); winner != nil {
				if err := tx.CreateWinner(ctx, winner); err != nil {
					return fmt.Errorf("failed to create winner: %w", err)
				}
				result.Winner = winner
			}
		}
		return nil
	})
	if err != nil {
		if ErrorCode(err) == CodeInternal {
			s.log.Error("participation failed",
				zap.String("raffle_id", raffleID.String()),
				zap.String("player_id", playerID.String()),
				zap.Error(err))
		}
		return nil, err
	}

	if drawn != nil {
		metrics.RecordDraw(string(drawn.Prize.Type), "instant")
	}

	if result.Winner != nil {
		s.distributeAfterEntry(ctx, raffleID, playerID, result)
	}

	return result, nil
}

// distributeAfterEntry pays the new winner outside the entry transaction.
// Failures leave the winner PENDING for a later run.
func (s *ParticipationService) distributeAfterEntry(ctx context.Context, raffleID, playerID uuid.UUID, result *ParticipationResult) {
	if s.distributor == nil {
		return
	}

	_, err := s.distributor.DistributePrizes(ctx, raffleID, DistributeOptions{PlayerID: &playerID})
	if err != nil {
		s.log.Warn("post-entry distribution failed",
			zap.String("raffle_id", raffleID.String()),
			zap.String("winner_id", result.Winner.ID.String()),
			zap.Error(err))
		return
	}

	winner, err := s.repo.GetWinner(ctx, result.Winner.ID)
	if err != nil {
		s.log.Warn("failed to reload winner", zap.String("winner_id", result.Winner.ID.String()), zap.Error(err))
		return
	}
	result.Winner = winner
}

func (s *ParticipationService) loadActiveRaffle(ctx context.Context, repo *repository.Repository, raffleID uuid.UUID) (*models.Raffle, error) {
	raffle, err := repo.GetRaffleByID(ctx, raffleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}
	if raffle.StatusAt(s.now()) != models.RaffleStatusActive {
		return nil, ErrRaffleNotActive
	}
	return raffle, nil
}
