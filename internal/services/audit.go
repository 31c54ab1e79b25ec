package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
)

// recordAdminAction writes an audit entry for operator calls. Calls without a
// session, such as scheduled jobs, are not audited.
func recordAdminAction(ctx context.Context, repo *repository.Repository, log *zap.Logger, action string, raffleID uuid.UUID, details map[string]interface{}) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return
	}

	entry := &models.AdminLog{
		AdminID:      session.PlayerID,
		Action:       action,
		ResourceType: "RAFFLE",
		ResourceID:   &raffleID,
		Details:      models.JSONB(details),
	}
	if err := repo.CreateAdminLog(ctx, entry); err != nil {
		log.Warn("failed to record admin action",
			zap.String("action", action),
			zap.String("raffle_id", raffleID.String()),
			zap.Error(err))
	}
}
