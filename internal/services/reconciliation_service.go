package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

// ReconciliationReport lists the differences between the database and the
// raffle's on-chain history
type ReconciliationReport struct {
	RaffleID              uuid.UUID                  `json:"raffle_id"`
	ChainAddress          string                     `json:"chain_address"`
	CheckedAt             time.Time                  `json:"checked_at"`
	DBParticipants        int64                      `json:"db_participants"`
	ChainParticipants     int                        `json:"chain_participants"`
	ParticipantDrift      int64                      `json:"participant_drift"`
	MissingOnChain        []uuid.UUID                `json:"missing_on_chain"`
	UnmatchedTransfers    []blockchain.ChainTransfer `json:"unmatched_transfers"`
	UnsettledWithTransfer []uuid.UUID                `json:"unsettled_with_transfer"`
	InFlightTransfers     []uuid.UUID                `json:"in_flight_transfers"`
	TransactionsScanned   int                        `json:"transactions_scanned"`
	Consistent            bool                       `json:"consistent"`
}

// ReconciliationService compares raffle records with chain events
type ReconciliationService struct {
	repo   *repository.Repository
	reader blockchain.ChainStateReader
	limit  int
	log    *zap.Logger
	now    func() time.Time
}

func NewReconciliationService(repo *repository.Repository, reader blockchain.ChainStateReader, log *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		repo:   repo,
		reader: reader,
		limit:  blockchain.DefaultSnapshotLimit,
		log:    log.Named("reconcile"),
		now:    time.Now,
	}
}

// Reconcile snapshots the raffle account and diffs it against stored
// participants and winners. It only reads.
func (s *ReconciliationService) Reconcile(ctx context.Context, raffleID uuid.UUID) (*ReconciliationReport, error) {
	raffle, err := s.repo.GetRaffleByID(ctx, raffleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}
	if raffle.ChainAddress == nil || *raffle.ChainAddress == "" {
		return nil, validationError("raffle has no chain address")
	}
	if s.reader == nil {
		return nil, ErrChainUnavailable
	}

	state, err := s.reader.Snapshot(ctx, *raffle.ChainAddress, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}

	participants, err := s.repo.CountParticipants(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	winners, err := s.repo.ListWinners(ctx, raffleID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load winners: %w", err)
	}

	report := diffChainState(winners, state)
	report.RaffleID = raffleID
	report.ChainAddress = *raffle.ChainAddress
	report.CheckedAt = s.now()
	report.DBParticipants = participants
	report.ChainParticipants = state.Participants
	report.ParticipantDrift = int64(state.Participants) - participants
	report.TransactionsScanned = state.TransactionsScanned
	report.Consistent = report.ParticipantDrift == 0 &&
		len(report.MissingOnChain) == 0 &&
		len(report.UnmatchedTransfers) == 0 &&
		len(report.UnsettledWithTransfer) == 0 &&
		len(report.InFlightTransfers) == 0

	if !report.Consistent {
		s.log.Warn("raffle out of sync with chain",
			zap.String("raffle_id", raffleID.String()),
			zap.Int64("participant_drift", report.ParticipantDrift),
			zap.Int("missing_on_chain", len(report.MissingOnChain)),
			zap.Int("unmatched_transfers", len(report.UnmatchedTransfers)),
			zap.Int("unsettled_with_transfer", len(report.UnsettledWithTransfer)),
			zap.Int("in_flight_transfers", len(report.InFlightTransfers)))
	}
	return report, nil
}

// diffChainState matches chain transfers to winners by winner id first and
// by transaction hash second. PENDING winners whose transfer started but
// never settled are listed as in flight.
func diffChainState(winners []models.Winner, state *blockchain.ChainRaffleState) *ReconciliationReport {
	report := &ReconciliationReport{
		MissingOnChain:        []uuid.UUID{},
		UnmatchedTransfers:    []blockchain.ChainTransfer{},
		UnsettledWithTransfer: []uuid.UUID{},
		InFlightTransfers:     []uuid.UUID{},
	}

	byID := make(map[uuid.UUID]*models.Winner, len(winners))
	byHash := make(map[string]*models.Winner, len(winners))
	for i := range winners {
		w := &winners[i]
		byID[w.ID] = w
		if w.TransactionHash != nil && *w.TransactionHash != "" {
			byHash[*w.TransactionHash] = w
		}
	}

	transferred := make(map[uuid.UUID]struct{})
	seenHashes := make(map[string]struct{})
	for _, tr := range state.Transfers {
		seenHashes[tr.Signature] = struct{}{}

		var matched *models.Winner
		if id, err := uuid.Parse(tr.WinnerID); err == nil {
			matched = byID[id]
		}
		if matched == nil {
			matched = byHash[tr.Signature]
		}
		if matched == nil {
			report.UnmatchedTransfers = append(report.UnmatchedTransfers, tr)
			continue
		}
		transferred[matched.ID] = struct{}{}
	}

	for i := range winners {
		w := &winners[i]
		_, onChain := transferred[w.ID]
		switch w.Status {
		case models.WinnerStatusDistributed:
			if w.Prize == nil || w.Prize.Type != models.PrizeTypeNFT {
				continue
			}
			hashSeen := false
			if w.TransactionHash != nil {
				_, hashSeen = seenHashes[*w.TransactionHash]
			}
			if !onChain && !hashSeen {
				report.MissingOnChain = append(report.MissingOnChain, w.ID)
			}
		case models.WinnerStatusPending, models.WinnerStatusFailed:
			if w.Status == models.WinnerStatusPending && w.TransferStartedAt != nil {
				report.InFlightTransfers = append(report.InFlightTransfers, w.ID)
			}
			if onChain {
				report.UnsettledWithTransfer = append(report.UnsettledWithTransfer, w.ID)
			}
		}
	}
	return report
}
