package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/ledger"
	"raffle-engine/internal/metrics"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

const (
	DefaultDistributionBatchSize = 50
	DefaultPayoutTimeout         = 30 * time.Second
)

var errNotClaimed = errors.New("winner no longer pending")

// DistributeOptions narrows a distribution run
type DistributeOptions struct {
	PlayerID  *uuid.UUID
	BatchSize int
}

// DistributionResult summarises a distribution run
type DistributionResult struct {
	Distributed []uuid.UUID  `json:"distributed"`
	Failed      []uuid.UUID  `json:"failed"`
	Outcome     BatchOutcome `json:"outcome"`
	Batches     int          `json:"batches"`
	Cancelled   bool         `json:"cancelled"`
}

// DistributionSettings configures payout batching
type DistributionSettings struct {
	BatchSize     int
	PayoutTimeout time.Duration
}

// DistributionService pays out PENDING winners through the ledger or on chain
type DistributionService struct {
	repo     *repository.Repository
	ledger   ledger.Ledger
	nft      blockchain.NFTTransferer
	settings DistributionSettings
	log      *zap.Logger
	now      func() time.Time
}

func NewDistributionService(
	repo *repository.Repository,
	l ledger.Ledger,
	nft blockchain.NFTTransferer,
	settings DistributionSettings,
	log *zap.Logger,
) *DistributionService {
	if settings.BatchSize <= 0 {
		settings.BatchSize = DefaultDistributionBatchSize
	}
	if settings.PayoutTimeout <= 0 {
		settings.PayoutTimeout = DefaultPayoutTimeout
	}
	return &DistributionService{
		repo:     repo,
		ledger:   l,
		nft:      nft,
		settings: settings,
		log:      log.Named("distribution"),
		now:      time.Now,
	}
}

// DistributePrizes pays every PENDING winner of a raffle, optionally for one
// player. Winners are processed in batches and each winner commits on its
// own: a payout failure marks that winner FAILED and the run moves on.
// Only PENDING winners with no transfer in flight are scanned, so repeated
// runs never pay twice.
func (s *DistributionService) DistributePrizes(ctx context.Context, raffleID uuid.UUID, opts DistributeOptions) (*DistributionResult, error) {
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch_size must be positive", ErrValidation)
	}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = s.settings.BatchSize
	}

	if _, err := s.repo.GetRaffleByID(ctx, raffleID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}

	ids, err := s.repo.ListPendingWinnerIDs(ctx, raffleID, opts.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending winners: %w", err)
	}

	result := &DistributionResult{
		Distributed: []uuid.UUID{},
		Failed:      []uuid.UUID{},
	}
	for _, batch := range chunk(ids, batchSize) {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		result.Batches++

		for _, id := range batch {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}
			status, err := s.distributeOne(ctx, id)
			switch {
			case errors.Is(err, errNotClaimed):
				result.Outcome.skip(id)
			case err != nil:
				s.log.Error("failed to settle winner",
					zap.String("raffle_id", raffleID.String()),
					zap.String("winner_id", id.String()),
					zap.Error(err))
				result.Outcome.fail(id, err)
			case status == models.WinnerStatusDistributed:
				result.Distributed = append(result.Distributed, id)
				result.Outcome.succeed(id)
			default:
				result.Failed = append(result.Failed, id)
				result.Outcome.fail(id, ErrPayoutFailed)
			}
		}
	}

	if opts.PlayerID == nil {
		recordAdminAction(context.WithoutCancel(ctx), s.repo, s.log, "DISTRIBUTE_PRIZES", raffleID, map[string]interface{}{
			"distributed": len(result.Distributed),
			"failed":      len(result.Failed),
			"batches":     result.Batches,
			"cancelled":   result.Cancelled,
		})
	}

	s.log.Info("distribution finished",
		zap.String("raffle_id", raffleID.String()),
		zap.Int("distributed", len(result.Distributed)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("batches", result.Batches))

	return result, nil
}

// distributeOne settles a single winner. NFT prizes go through
// distributeNFT; everything else commits in one ledger transaction.
func (s *DistributionService) distributeOne(ctx context.Context, winnerID uuid.UUID) (models.WinnerStatus, error) {
	winner, err := s.repo.GetWinner(ctx, winnerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", errNotClaimed
		}
		return "", fmt.Errorf("failed to load winner: %w", err)
	}
	if winner.Status != models.WinnerStatusPending || winner.TransferStartedAt != nil {
		return "", errNotClaimed
	}
	if winner.Prize != nil && winner.Prize.Type == models.PrizeTypeNFT {
		return s.distributeNFT(ctx, winner)
	}
	return s.distributeInLedger(ctx, winnerID)
}

// distributeInLedger claims and settles a winner in its own transaction.
// The payout runs in a savepoint so a failed payout still commits FAILED.
func (s *DistributionService) distributeInLedger(ctx context.Context, winnerID uuid.UUID) (models.WinnerStatus, error) {
	var status models.WinnerStatus
	var prizeType models.PrizeType
	start := time.Now()

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		claimed, err := tx.ClaimPendingWinner(ctx, winnerID)
		if err != nil {
			return fmt.Errorf("failed to claim winner: %w", err)
		}
		if !claimed {
			return errNotClaimed
		}

		winner, err := tx.GetWinner(ctx, winnerID)
		if err != nil {
			return fmt.Errorf("failed to load winner: %w", err)
		}
		if winner.Prize == nil {
			status = models.WinnerStatusFailed
			return tx.MarkWinnerFailed(ctx, winnerID, "prize not found")
		}
		prizeType = winner.Prize.Type

		payoutErr := tx.Transaction(ctx, func(ptx *repository.Repository) error {
			return s.payout(ctx, ptx, winner)
		})

		if payoutErr != nil {
			s.log.Warn("payout failed",
				zap.String("winner_id", winnerID.String()),
				zap.String("prize_type", string(prizeType)),
				zap.Error(payoutErr))
			status = models.WinnerStatusFailed
			return tx.MarkWinnerFailed(ctx, winnerID, payoutErr.Error())
		}

		status = models.WinnerStatusDistributed
		return tx.MarkWinnerDistributed(ctx, winnerID, nil, s.now())
	})
	if err != nil {
		return "", err
	}

	metrics.RecordPayout(string(prizeType), string(status), time.Since(start))
	return status, nil
}

// payout credits a ledger prize to the player
func (s *DistributionService) payout(ctx context.Context, tx *repository.Repository, winner *models.Winner) error {
	prize := winner.Prize

	switch prize.Type {
	case models.PrizeTypeAsset:
		if prize.AssetID == nil || *prize.AssetID == "" {
			return fmt.Errorf("asset prize %s has no asset id", prize.ID)
		}
		reason := fmt.Sprintf("raffle %s prize %s", winner.RaffleID, prize.Name)
		err := s.ledger.UpdatePlayerAsset(ctx, tx.DB(), winner.PlayerID, *prize.AssetID, prize.Amount, models.AssetOperationAdd, reason)
		if err != nil {
			return fmt.Errorf("ledger credit failed: %w", err)
		}
		return nil

	case models.PrizeTypeEmpty:
		return nil

	case models.PrizeTypeNFT:
		return fmt.Errorf("nft prize %s cannot be paid from the ledger", prize.ID)

	default:
		return fmt.Errorf("unknown prize type %q", prize.Type)
	}
}

// unknownOutcome prefixes failures after which the transfer may still land
const unknownOutcome = "transfer outcome unknown, check chain before requeue: "

// distributeNFT commits the transfer marker before anything is sent, so a
// lost settle or a crash leaves the winner in flight rather than PENDING.
// The transfer itself runs outside any transaction and its result is
// settled even when the caller went away.
func (s *DistributionService) distributeNFT(ctx context.Context, winner *models.Winner) (models.WinnerStatus, error) {
	start := time.Now()

	started, err := s.repo.StartWinnerTransfer(ctx, winner.ID, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to mark transfer: %w", err)
	}
	if !started {
		return "", errNotClaimed
	}

	signature, sendErr := s.sendNFT(ctx, winner)

	settleCtx := context.WithoutCancel(ctx)
	status := models.WinnerStatusDistributed
	if sendErr != nil {
		reason := sendErr.Error()
		if errors.Is(sendErr, context.DeadlineExceeded) || errors.Is(sendErr, context.Canceled) {
			reason = unknownOutcome + reason
		}
		s.log.Warn("payout failed",
			zap.String("winner_id", winner.ID.String()),
			zap.String("prize_type", string(models.PrizeTypeNFT)),
			zap.Error(sendErr))
		status = models.WinnerStatusFailed
		err = s.repo.MarkWinnerFailed(settleCtx, winner.ID, reason)
	} else {
		err = s.repo.MarkWinnerDistributed(settleCtx, winner.ID, &signature, s.now())
	}
	if err != nil {
		s.log.Error("failed to settle transfer, winner left in flight",
			zap.String("winner_id", winner.ID.String()),
			zap.String("signature", signature),
			zap.Error(err))
		return "", fmt.Errorf("failed to settle winner: %w", err)
	}

	metrics.RecordPayout(string(models.PrizeTypeNFT), string(status), time.Since(start))
	return status, nil
}

// sendNFT resolves the winner's wallet and sends the prize. It returns the
// chain signature.
func (s *DistributionService) sendNFT(ctx context.Context, winner *models.Winner) (string, error) {
	prize := winner.Prize
	if prize.NFTCollection == nil || *prize.NFTCollection == "" {
		return "", fmt.Errorf("nft prize %s has no collection", prize.ID)
	}

	wallet, err := s.repo.GetDefaultWallet(ctx, winner.PlayerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrWalletMissing
		}
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}

	quantity := prize.NFTQuantity
	if quantity <= 0 {
		quantity = 1
	}
	res, err := s.transferNFT(ctx, *prize.NFTCollection, quantity, wallet.WalletAddress)
	if err != nil {
		return "", err
	}
	return res.Signature, nil
}

// transferNFT calls the transferer bounded by the payout timeout
func (s *DistributionService) transferNFT(ctx context.Context, collection string, quantity int, to string) (*blockchain.TransferResult, error) {
	if s.nft == nil {
		return nil, ErrChainUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.PayoutTimeout)
	defer cancel()

	type transferOutcome struct {
		res *blockchain.TransferResult
		err error
	}
	done := make(chan transferOutcome, 1)
	go func() {
		res, err := s.nft.Transfer(ctx, collection, quantity, to)
		done <- transferOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("nft transfer failed: %w", out.err)
		}
		if out.res == nil || out.res.Signature == "" {
			return nil, fmt.Errorf("nft transfer returned no signature")
		}
		return out.res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("nft transfer timed out after %s: %w", s.settings.PayoutTimeout, ctx.Err())
	}
}
