package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/services"
)

var statusByCode = map[string]int{
	services.CodeUnauthenticated:    http.StatusUnauthorized,
	services.CodeInvalidSignature:   http.StatusUnauthorized,
	services.CodeForbidden:          http.StatusForbidden,
	services.CodeValidation:         http.StatusBadRequest,
	services.CodeRaffleNotFound:     http.StatusNotFound,
	services.CodeNotFound:           http.StatusNotFound,
	services.CodeRaffleNotActive:    http.StatusConflict,
	services.CodeRaffleNotDrawable:  http.StatusConflict,
	services.CodeRaffleStarted:      http.StatusConflict,
	services.CodeDuplicateEntry:     http.StatusConflict,
	services.CodeEntryLimitExceeded: http.StatusConflict,
	services.CodeCapacityExceeded:   http.StatusConflict,
	services.CodePoolExhausted:      http.StatusConflict,
	services.CodeNotDrawn:           http.StatusConflict,
	services.CodeWalletMissing:      http.StatusConflict,
	services.CodeInsufficientFee:    http.StatusPaymentRequired,
	services.CodeChainUnavailable:   http.StatusServiceUnavailable,
	services.CodePayoutFailed:       http.StatusBadGateway,
}

// HTTPStatus maps a service error code to its HTTP status
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	code := services.ErrorCode(err)
	status := HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
	}
	respondCode(c, status, code, services.PublicMessage(err))
}

func badRequest(c *gin.Context, message string) {
	respondCode(c, http.StatusBadRequest, services.CodeValidation, message)
}

// raffleID parses the :id path parameter
func raffleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid raffle id")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds a JSON body when one is present
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}
