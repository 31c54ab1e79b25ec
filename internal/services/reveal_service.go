package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/metrics"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

const (
	DefaultRevealBatchSize = 20
	MaxRevealBatchSize     = 50
)

// RevealResult is a single revealed entry
type RevealResult struct {
	Participant     *models.Participant `json:"participant"`
	Prize           *models.Prize       `json:"prize,omitempty"`
	Winner          *models.Winner      `json:"winner,omitempty"`
	AlreadyRevealed bool                `json:"already_revealed"`
}

// BulkRevealOptions narrows a bulk reveal
type BulkRevealOptions struct {
	ParticipantIDs []uuid.UUID
	BatchSize      int
}

// BulkRevealResult summarises a bulk reveal
type BulkRevealResult struct {
	Revealed  []models.Participant `json:"revealed"`
	Outcome   BatchOutcome         `json:"outcome"`
	Batches   int                  `json:"batches"`
	Cancelled bool                 `json:"cancelled"`
}

// RevealSettings bounds bulk reveals
type RevealSettings struct {
	BatchSize    int
	MaxBatchSize int
}

// RevealService shows players the prizes drawn for their entries
type RevealService struct {
	repo     *repository.Repository
	settings RevealSettings
	log      *zap.Logger
	now      func() time.Time
}

func NewRevealService(repo *repository.Repository, settings RevealSettings, log *zap.Logger) *RevealService {
	if settings.MaxBatchSize <= 0 || settings.MaxBatchSize > MaxRevealBatchSize {
		settings.MaxBatchSize = MaxRevealBatchSize
	}
	if settings.BatchSize <= 0 || settings.BatchSize > settings.MaxBatchSize {
		settings.BatchSize = DefaultRevealBatchSize
	}
	return &RevealService{
		repo:     repo,
		settings: settings,
		log:      log.Named("reveal"),
		now:      time.Now,
	}
}

// RevealResult reveals one entry of the authenticated player: the given one,
// or the oldest drawn entry still hidden. Revealing twice returns the first
// reveal unchanged.
func (s *RevealService) RevealResult(ctx context.Context, raffleID uuid.UUID, participantID *uuid.UUID) (*RevealResult, error) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	var participant *models.Participant
	if participantID != nil {
		participant, err = s.repo.GetParticipant(ctx, raffleID, *participantID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrParticipantMissing
			}
			return nil, fmt.Errorf("failed to load participant: %w", err)
		}
		if participant.PlayerID != session.PlayerID {
			return nil, ErrParticipantMissing
		}
	} else {
		participant, err = s.repo.GetOldestUnrevealed(ctx, raffleID, session.PlayerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrNoUnrevealed
			}
			return nil, fmt.Errorf("failed to load participant: %w", err)
		}
	}

	if !participant.IsDrawn() {
		return nil, ErrNotDrawn
	}

	result := &RevealResult{AlreadyRevealed: participant.IsRevealed}
	if !participant.IsRevealed {
		var changed int64
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			n, err := tx.MarkRevealed(ctx, raffleID, session.PlayerID, []uuid.UUID{participant.ID}, s.now())
			changed = n
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reveal participant: %w", err)
		}
		// a concurrent reveal won; report it as already revealed
		result.AlreadyRevealed = changed == 0
		metrics.RecordReveals(int(changed))

		participant, err = s.repo.GetParticipant(ctx, raffleID, participant.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload participant: %w", err)
		}
	}

	result.Participant = participant
	result.Prize = participant.Prize

	winner, err := s.repo.GetWinnerByParticipant(ctx, participant.ID)
	if err == nil {
		result.Winner = winner
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load winner: %w", err)
	}

	return result, nil
}

// RevealAll reveals the authenticated player's drawn entries in batches of
// at most MaxBatchSize. Each batch commits on its own. Without explicit ids
// every drawn, hidden entry of the player is revealed.
func (s *RevealService) RevealAll(ctx context.Context, raffleID uuid.UUID, opts BulkRevealOptions) (*BulkRevealResult, error) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch_size must be positive", ErrValidation)
	}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = s.settings.BatchSize
	}
	if batchSize > s.settings.MaxBatchSize {
		batchSize = s.settings.MaxBatchSize
	}

	if err := s.ensureRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	result := &BulkRevealResult{Revealed: []models.Participant{}}

	var pending []uuid.UUID
	if len(opts.ParticipantIDs) == 0 {
		pending, err = s.repo.ListUnrevealedIDs(ctx, raffleID, session.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list unrevealed entries: %w", err)
		}
	} else {
		pending, err = s.classify(ctx, raffleID, session.PlayerID, opts.ParticipantIDs, &result.Outcome)
		if err != nil {
			return nil, err
		}
	}

	var done []uuid.UUID
	for _, batch := range chunk(pending, batchSize) {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		result.Batches++
		err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			n, err := tx.MarkRevealed(ctx, raffleID, session.PlayerID, batch, s.now())
			metrics.RecordReveals(int(n))
			return err
		})
		if err != nil {
			s.log.Error("failed to reveal batch",
				zap.String("raffle_id", raffleID.String()),
				zap.Int("size", len(batch)),
				zap.Error(err))
			for _, id := range batch {
				result.Outcome.fail(id, err)
			}
			continue
		}
		for _, id := range batch {
			result.Outcome.succeed(id)
		}
		done = append(done, batch...)
	}

	if len(done) > 0 {
		// committed batches are reported even when the caller went away
		revealed, err := s.repo.GetPlayerParticipants(context.WithoutCancel(ctx), raffleID, session.PlayerID, done)
		if err != nil {
			s.log.Error("failed to reload revealed entries",
				zap.String("raffle_id", raffleID.String()),
				zap.Error(err))
		} else {
			result.Revealed = revealed
		}
	}

	return result, nil
}

// classify records requested ids that cannot be revealed and returns the
// ones that still need it. Already revealed entries count as succeeded.
func (s *RevealService) classify(ctx context.Context, raffleID, playerID uuid.UUID, ids []uuid.UUID, outcome *BatchOutcome) ([]uuid.UUID, error) {
	found, err := s.repo.GetPlayerParticipants(ctx, raffleID, playerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	byID := make(map[uuid.UUID]models.Participant, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	var pending []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		p, ok := byID[id]
		switch {
		case !ok:
			outcome.fail(id, ErrParticipantMissing)
		case !p.IsDrawn():
			outcome.fail(id, ErrNotDrawn)
		case p.IsRevealed:
			outcome.succeed(id)
		default:
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func (s *RevealService) ensureRaffle(ctx context.Context, raffleID uuid.UUID) error {
	if _, err := s.repo.GetRaffleByID(ctx, raffleID); err != nil {
		if repository.IsNotFound(err) {
			return ErrRaffleNotFound
		}
		return fmt.Errorf("failed to load raffle: %w", err)
	}
	return nil
}
