package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
)

// auditRepository implements the AuditRepository interface
type auditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository instance
func NewAuditRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AuditRepository {
	return &auditRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends an audit entry. Fire-and-forget: a failed insert is logged
// and never surfaces to the calling operation.
func (r *auditRepository) Record(ctx context.Context, action, subjectID, actorIP, result string, details map[string]interface{}) {
	entry := model.AuditLog{
		Action:    action,
		SubjectID: subjectID,
		ActorIP:   actorIP,
		Result:    result,
		Details:   model.JSONB(details),
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.logger.Error("Failed to record audit entry",
			zap.String("action", action),
			zap.String("subject_id", subjectID),
			zap.Error(err))
	}
}
