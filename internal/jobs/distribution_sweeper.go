package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"raffle-engine/internal/services"
)

// PendingSource lists raffles that still owe payouts
type PendingSource interface {
	RafflesWithPendingWinners(ctx context.Context) ([]uuid.UUID, error)
}

// DistributionSweeper retries PENDING payouts on a cron schedule. FAILED
// winners are left for operators.
type DistributionSweeper struct {
	source      PendingSource
	distributor services.PrizeDistributor
	log         *zap.Logger
	cron        *cron.Cron
	baseCtx     context.Context
}

func NewDistributionSweeper(baseCtx context.Context, source PendingSource, distributor services.PrizeDistributor, log *zap.Logger) *DistributionSweeper {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &DistributionSweeper{
		source:      source,
		distributor: distributor,
		log:         log.Named("sweeper"),
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		baseCtx:     baseCtx,
	}
}

// Start schedules the sweep, e.g. "@every 5m"
func (s *DistributionSweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.baseCtx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("distribution sweeper started", zap.String("spec", spec))
	return nil
}

// Stop waits for a running sweep to finish
func (s *DistributionSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("distribution sweeper stopped")
}

// RunOnce distributes every raffle with PENDING winners and returns how
// many winners were paid
func (s *DistributionSweeper) RunOnce(ctx context.Context) int {
	raffles, err := s.source.RafflesWithPendingWinners(ctx)
	if err != nil {
		s.log.Error("failed to list raffles with pending winners", zap.Error(err))
		return 0
	}

	paid := 0
	for _, raffleID := range raffles {
		if ctx.Err() != nil {
			break
		}
		res, err := s.distributor.DistributePrizes(ctx, raffleID, services.DistributeOptions{})
		if err != nil {
			s.log.Error("sweep distribution failed", zap.String("raffle_id", raffleID.String()), zap.Error(err))
			continue
		}
		paid += len(res.Distributed)
		if len(res.Failed) > 0 {
			s.log.Warn("payouts failed during sweep",
				zap.String("raffle_id", raffleID.String()),
				zap.Int("failed", len(res.Failed)))
		}
	}

	if len(raffles) > 0 {
		s.log.Info("sweep finished", zap.Int("raffles", len(raffles)), zap.Int("paid", paid))
	}
	return paid
}
