package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/metrics"
	"raffle-engine/internal/models"
	"raffle-engine/internal/prizepool"
	"raffle-engine/internal/repository"
)

// maxDrawAttempts bounds redraws after losing a quantity race
const maxDrawAttempts = 5

var errAlreadyDrawn = errors.New("participant already drawn")

// drawnPrize is a committed pool draw
type drawnPrize struct {
	Prize      models.Prize
	SlotNumber int64
	Seed       string
}

// drawFromPool runs the weighted draw against the raffle's live prizes and
// takes one unit of the winner when the raffle is limited. Must run inside
// the caller's transaction.
func drawFromPool(ctx context.Context, tx *repository.Repository, raffle *models.Raffle) (*drawnPrize, error) {
	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		prizes, err := tx.GetDrawablePrizes(ctx, raffle.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load prizes: %w", err)
		}

		candidates := make([]prizepool.Candidate, 0, len(prizes))
		byID := make(map[uuid.UUID]models.Prize, len(prizes))
		for _, p := range prizes {
			candidates = append(candidates, prizepool.Candidate{
				PrizeID:  p.ID,
				Quantity: p.Quantity,
				Order:    p.Order,
			})
			byID[p.ID] = p
		}

		res, err := prizepool.Draw(candidates)
		if err != nil {
			if errors.Is(err, prizepool.ErrPoolExhausted) {
				return nil, ErrPoolExhausted
			}
			return nil, fmt.Errorf("%w: %v", ErrDrawFailed, err)
		}

		if raffle.IsLimited {
			ok, err := tx.DecrementPrizeQuantity(ctx, res.PrizeID)
			if err != nil {
				return nil, fmt.Errorf("failed to decrement prize: %w", err)
			}
			if !ok {
				continue
			}
		}

		seed, err := prizepool.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDrawFailed, err)
		}

		return &drawnPrize{
			Prize:      byID[res.PrizeID],
			SlotNumber: res.SlotNumber,
			Seed:       seed,
		}, nil
	}

	return nil, fmt.Errorf("%w: prize taken concurrently %d times", ErrDrawFailed, maxDrawAttempts)
}

// newWinner builds the PENDING winner of a non-empty draw, nil for EMPTY
func newWinner(raffleID uuid.UUID, p *models.Participant, drawn *drawnPrize) *models.Winner {
	if drawn.Prize.Type == models.PrizeTypeEmpty {
		return nil
	}
	return &models.Winner{
		RaffleID:      raffleID,
		PrizeID:       drawn.Prize.ID,
		ParticipantID: p.ID,
		PlayerID:      p.PlayerID,
		Status:        models.WinnerStatusPending,
	}
}

// DrawAllResult summarises a batch draw
type DrawAllResult struct {
	Winners   []*models.Winner `json:"winners"`
	Outcome   BatchOutcome     `json:"outcome"`
	Exhausted bool             `json:"exhausted"`
	Remaining int64            `json:"remaining"`
	Cancelled bool             `json:"cancelled"`
}

// DrawService draws prizes for delayed-reveal raffles
type DrawService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewDrawService(repo *repository.Repository, log *zap.Logger) *DrawService {
	return &DrawService{
		repo: repo,
		log:  log.Named("draw"),
		now:  time.Now,
	}
}

// DrawAllWinners draws a prize for every undrawn entry of an ended raffle,
// oldest entry first. Each entry commits on its own. An exhausted pool stops
// the run and leaves the remaining entries undrawn.
func (s *DrawService) DrawAllWinners(ctx context.Context, raffleID uuid.UUID) (*DrawAllResult, error) {
	raffle, err := s.repo.GetRaffleByID(ctx, raffleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}

	if raffle.InstantReveal {
		return nil, fmt.Errorf("%w: instant reveal raffles draw at entry", ErrRaffleNotDrawable)
	}
	status := raffle.StatusAt(s.now())
	if status != models.RaffleStatusWaitingDraw && status != models.RaffleStatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrRaffleNotDrawable, status)
	}

	ids, err := s.repo.ListUndrawnIDs(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list undrawn entries: %w", err)
	}

	result := &DrawAllResult{Winners: []*models.Winner{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		winner, err := s.drawOne(ctx, raffle, id)
		switch {
		case err == nil:
			result.Outcome.succeed(id)
			if winner != nil {
				result.Winners = append(result.Winners, winner)
			}
		case errors.Is(err, errAlreadyDrawn):
			result.Outcome.skip(id)
		case errors.Is(err, ErrPoolExhausted):
			result.Exhausted = true
			s.log.Warn("prize pool exhausted during batch draw",
				zap.String("raffle_id", raffleID.String()),
				zap.Int("drawn", result.Outcome.Succeeded))
		default:
			s.log.Error("failed to draw participant",
				zap.String("raffle_id", raffleID.String()),
				zap.String("participant_id", id.String()),
				zap.Error(err))
			result.Outcome.fail(id, err)
		}
		if result.Exhausted {
			break
		}
	}

	// committed draws are reported even when the caller went away
	summaryCtx := context.WithoutCancel(ctx)
	remaining, err := s.repo.CountUndrawn(summaryCtx, raffleID)
	if err != nil {
		s.log.Error("failed to count undrawn entries",
			zap.String("raffle_id", raffleID.String()),
			zap.Error(err))
		remaining = int64(len(ids) - result.Outcome.Succeeded - result.Outcome.Skipped)
	}
	result.Remaining = remaining

	recordAdminAction(summaryCtx, s.repo, s.log, "DRAW_ALL_WINNERS", raffleID, map[string]interface{}{
		"succeeded": result.Outcome.Succeeded,
		"failed":    result.Outcome.Failed,
		"exhausted": result.Exhausted,
		"cancelled": result.Cancelled,
		"remaining": remaining,
	})

	s.log.Info("batch draw finished",
		zap.String("raffle_id", raffleID.String()),
		zap.Int("succeeded", result.Outcome.Succeeded),
		zap.Int("failed", result.Outcome.Failed),
		zap.Int("winners", len(result.Winners)),
		zap.Bool("exhausted", result.Exhausted),
		zap.Bool("cancelled", result.Cancelled))

	return result, nil
}

func (s *DrawService) drawOne(ctx context.Context, raffle *models.Raffle, participantID uuid.UUID) (*models.Winner, error) {
	var winner *models.Winner
	var prizeType models.PrizeType

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		drawn, err := drawFromPool(ctx, tx, raffle)
		if err != nil {
			return err
		}

		ok, err := tx.RecordDraw(ctx, participantID, repository.DrawRecord{
			PrizeID:    drawn.Prize.ID,
			SlotNumber: drawn.SlotNumber,
			RandomSeed: drawn.Seed,
			DrawnAt:    s.now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record draw: %w", err)
		}
		if !ok {
			// rolls back the quantity taken above
			return errAlreadyDrawn
		}

		participant, err := tx.GetParticipant(ctx, raffle.ID, participantID)
		if err != nil {
			return fmt.Errorf("failed to reload participant: %w", err)
		}

		winner = newWinner(raffle.ID, participant, drawn)
		if winner != nil {
			if err := tx.CreateWinner(ctx, winner); err != nil {
				return fmt.Errorf("failed to create winner: %w", err)
			}
		}
		prizeType = drawn.Prize.Type
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDraw(string(prizeType), "batch")
	return winner, nil
}
