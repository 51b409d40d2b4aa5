package service

import (
	"context"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

const maxAuditPage = 500

// AuditService exposes the append-only governance ledger.
type AuditService struct {
	data dataContext
}

// NewAuditService constructs an AuditService.
func NewAuditService(data dataContext) *AuditService {
	return &AuditService{data: data}
}

// List returns audit entries newest first. Only administrators may read the ledger.
func (s *AuditService) List(ctx context.Context, actor models.Actor, query dto.AuditQuery) ([]models.AuditLogEntry, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "")
	}
	action := models.AuditAction(query.Action)
	switch action {
	case "", models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete, models.AuditActionImport, models.AuditActionResolveReport:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown audit action")
	}
	limit := query.Limit
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	return curriculum.FilterAudit(s.data.Snapshot().AuditLog, models.AuditFilter{
		Action:   action,
		EntityID: query.EntityID,
		UserID:   query.UserID,
		Limit:    limit,
	}), nil
}
