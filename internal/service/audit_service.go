package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records security-relevant actions. Failures are logged and
// swallowed so auditing never breaks the primary operation.
type AuditService struct {
	repo   auditLogWriter
	logger *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(repo auditLogWriter, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record writes an audit entry.
func (s *AuditService) Record(ctx context.Context, userID *string, action, entity, entityID, detail string) {
	log := &models.AuditLog{
		UserID:   userID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.Error(err))
	}
}
