package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/models"
	"raffle-engine/internal/services"
)

// DiagnosticsRunner reports on the chain connection
type DiagnosticsRunner interface {
	Run(ctx context.Context) *blockchain.DiagnosticResult
}

// AdminHandler handles admin raffle operations
type AdminHandler struct {
	raffles      *services.RaffleService
	draws        *services.DrawService
	distribution *services.DistributionService
	reconcile    *services.ReconciliationService
	diagnostics  DiagnosticsRunner
	log          *zap.Logger
}

// AdminServices groups the services behind the admin routes
type AdminServices struct {
	Raffles        *services.RaffleService
	Draws          *services.DrawService
	Distribution   *services.DistributionService
	Reconciliation *services.ReconciliationService
	Diagnostics    DiagnosticsRunner
}

func NewAdminHandler(svc AdminServices, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		raffles:      svc.Raffles,
		draws:        svc.Draws,
		distribution: svc.Distribution,
		reconcile:    svc.Reconciliation,
		diagnostics:  svc.Diagnostics,
		log:          log.Named("admin_handler"),
	}
}

// CreateRaffle creates a raffle with its prize pool
// POST /api/admin/raffles
func (h *AdminHandler) CreateRaffle(c *gin.Context) {
	var req models.CreateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	raffle, err := h.raffles.CreateRaffle(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusCreated, raffle)
}

// ReplacePrizes swaps the prize pool of a raffle that has not started
// PUT /api/admin/raffles/:id/prizes
func (h *AdminHandler) ReplacePrizes(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	var req struct {
		Prizes []models.CreatePrizeRequest `json:"prizes" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	raffle, err := h.raffles.ReplacePrizes(c.Request.Context(), id, req.Prizes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, raffle)
}

// DrawAll draws prizes for every undrawn entry
// POST /api/admin/raffles/:id/draw
func (h *AdminHandler) DrawAll(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	result, err := h.draws.DrawAllWinners(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// Distribute pays out PENDING winners
// POST /api/admin/raffles/:id/distribute
func (h *AdminHandler) Distribute(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	var req models.DistributeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.distribution.DistributePrizes(c.Request.Context(), id, services.DistributeOptions{
		PlayerID:  req.PlayerID,
		BatchSize: req.BatchSize,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// ListWinners lists winners, optionally filtered by ?status=
// GET /api/admin/raffles/:id/winners
func (h *AdminHandler) ListWinners(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	var status *models.WinnerStatus
	if raw := c.Query("status"); raw != "" {
		s := models.WinnerStatus(raw)
		status = &s
	}

	winners, err := h.raffles.ListWinners(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, winners)
}

// RequeueFailed moves FAILED winners back to PENDING
// POST /api/admin/raffles/:id/winners/requeue
func (h *AdminHandler) RequeueFailed(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	var req models.RequeueRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	requeued, err := h.raffles.RequeueFailedWinners(c.Request.Context(), id, req.WinnerIDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"requeued": requeued})
}

// Reconcile compares stored results with on-chain raffle events
// GET /api/admin/raffles/:id/reconcile
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	report, err := h.reconcile.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, report)
}

// SolanaDiagnostics reports RPC and server wallet health
// GET /api/admin/diagnostics/solana
func (h *AdminHandler) SolanaDiagnostics(c *gin.Context) {
	if h.diagnostics == nil {
		respondCode(c, http.StatusServiceUnavailable, services.CodeChainUnavailable, "diagnostics not configured")
		return
	}
	respondOK(c, http.StatusOK, h.diagnostics.Run(c.Request.Context()))
}
