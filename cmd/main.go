package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/config"
	"raffle-engine/internal/database"
	"raffle-engine/internal/handlers"
	"raffle-engine/internal/jobs"
	"raffle-engine/internal/ledger"
	"raffle-engine/internal/logger"
	"raffle-engine/internal/middleware"
	"raffle-engine/internal/repository"
	"raffle-engine/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret, cfg.App.TokenTTL)

	// Connect to database
	db, err := database.Connect(cfg, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}

	repo := repository.NewRepository(db)
	assetLedger := ledger.New()

	// NFT payouts need the server wallet; without it NFT winners fail with WALLET_MISSING
	var nft blockchain.NFTTransferer
	distributor, err := blockchain.NewNFTDistributor(cfg.Solana, zl)
	if err != nil {
		zl.Warn("NFT distribution disabled", zap.Error(err))
	} else {
		nft = distributor
		zl.Info("NFT distribution enabled", zap.String("server_wallet", distributor.PublicKey().String()))
	}

	// Initialize services
	distributionService := services.NewDistributionService(repo, assetLedger, nft, services.DistributionSettings{
		BatchSize:     cfg.Distribution.BatchSize,
		PayoutTimeout: cfg.Distribution.PayoutTimeout,
	}, zl)
	raffleService := services.NewRaffleService(repo, zl)
	participationService := services.NewParticipationService(repo, assetLedger, distributionService, zl)
	revealService := services.NewRevealService(repo, services.RevealSettings{
		BatchSize:    cfg.Reveal.BatchSize,
		MaxBatchSize: cfg.Reveal.MaxBatchSize,
	}, zl)
	drawService := services.NewDrawService(repo, zl)
	playerService := services.NewPlayerService(repo, cfg.App.AdminWallets, zl)
	reconciliationService := services.NewReconciliationService(repo, blockchain.NewReconciler(cfg.Solana, zl), zl)

	// Background payout retries
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeper *jobs.DistributionSweeper
	if cfg.Jobs.SweepEnabled {
		sweeper = jobs.NewDistributionSweeper(ctx, repo, distributionService, zl)
		if err := sweeper.Start(cfg.Jobs.SweepSpec); err != nil {
			zl.Fatal("failed to start distribution sweeper", zap.Error(err))
		}
	}

	limiter := middleware.NewRateLimiter(cfg.App.ParticipateRate, cfg.App.ParticipateBurst, zl)
	limiter.StartCleanup(5*time.Minute, ctx.Done())

	router := handlers.NewRouter(handlers.RouterConfig{
		DB:             db,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Raffles:        handlers.NewRaffleHandler(raffleService, participationService, revealService, zl),
		Admin: handlers.NewAdminHandler(handlers.AdminServices{
			Raffles:        raffleService,
			Draws:          drawService,
			Distribution:   distributionService,
			Reconciliation: reconciliationService,
			Diagnostics:    blockchain.NewDiagnostics(cfg.Solana, zl),
		}, zl),
		Auth:          handlers.NewAuthHandler(playerService, zl),
		Participation: limiter,
		Log:           zl,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	if sweeper != nil {
		sweeper.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server exited")
}
