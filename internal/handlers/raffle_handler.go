package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raffle-engine/internal/models"
	"raffle-engine/internal/services"
)

// RaffleHandler serves the player facing raffle routes
type RaffleHandler struct {
	raffles       *services.RaffleService
	participation *services.ParticipationService
	reveal        *services.RevealService
	log           *zap.Logger
}

func NewRaffleHandler(
	raffles *services.RaffleService,
	participation *services.ParticipationService,
	reveal *services.RevealService,
	log *zap.Logger,
) *RaffleHandler {
	return &RaffleHandler{
		raffles:       raffles,
		participation: participation,
		reveal:        reveal,
		log:           log.Named("raffle_handler"),
	}
}

// GetRaffle godoc
// GET /api/raffles/:id
func (h *RaffleHandler) GetRaffle(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	raffle, err := h.raffles.GetRaffle(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, raffle)
}

// Participate godoc
// POST /api/raffles/:id/participate
func (h *RaffleHandler) Participate(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	result, err := h.participation.Participate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, result)
}

// Reveal godoc
// POST /api/raffles/:id/reveal
func (h *RaffleHandler) Reveal(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var req models.RevealRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.reveal.RevealResult(c.Request.Context(), id, req.ParticipantID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// RevealAll godoc
// POST /api/raffles/:id/reveal-all
func (h *RaffleHandler) RevealAll(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var req models.BulkRevealRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.reveal.RevealAll(c.Request.Context(), id, services.BulkRevealOptions{
		ParticipantIDs: req.ParticipantIDs,
		BatchSize:      req.BatchSize,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// MyEntries godoc
// GET /api/raffles/:id/entries
func (h *RaffleHandler) MyEntries(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	entries, err := h.raffles.ListMyEntries(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}
