package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type ProjectRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)
	// MarkPaid sets payment_status=paid and, when status is non-empty, the new status.
	MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, status billing.ProjectStatus) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return r.get(transaction.WithContext(ctx), id)
}

func (r *projectRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return r.get(transaction.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *projectRepo) get(q *gorm.DB, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Project
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *projectRepo) MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, status billing.ProjectStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"payment_status": billing.PaymentPaid,
		"updated_at":     time.Now().UTC(),
	}
	if status != "" {
		updates["status"] = status
	}
	return transaction.WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}
