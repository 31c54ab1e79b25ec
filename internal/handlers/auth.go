package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"raffle-engine/internal/models"
	"raffle-engine/internal/services"
)

// AuthHandler handles wallet login
type AuthHandler struct {
	players *services.PlayerService
	log     *zap.Logger
}

func NewAuthHandler(players *services.PlayerService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{players: players, log: log.Named("auth_handler")}
}

// LoginMessage returns a fresh message for the wallet to sign
// GET /auth/message?wallet_address=...
func (h *AuthHandler) LoginMessage(c *gin.Context) {
	challenge, err := h.players.IssueLoginMessage(c.Query("wallet_address"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, challenge)
}

// WalletLogin verifies a signed login message and issues a token
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req models.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.players.WalletLogin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// Me returns the authenticated player
// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	player, err := h.players.GetProfile(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, player)
}
