package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type ProfileRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error)
	ListIDsByRole(ctx context.Context, tx *gorm.DB, role user.Role) ([]uuid.UUID, error)
	UpdateSubscription(ctx context.Context, tx *gorm.DB, id uuid.UUID, pack user.Pack, start, end time.Time) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return r.get(transaction.WithContext(ctx), id)
}

func (r *profileRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return r.get(transaction.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *profileRepo) get(q *gorm.DB, id uuid.UUID) (*types.Profile, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Profile
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *profileRepo) ListIDsByRole(ctx context.Context, tx *gorm.DB, role user.Role) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Profile{}).
		Where("role = ?", role).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *profileRepo) UpdateSubscription(ctx context.Context, tx *gorm.DB, id uuid.UUID, pack user.Pack, start, end time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pack_type":          pack,
			"subscription_start": start.UTC(),
			"subscription_end":   end.UTC(),
			"updated_at":         time.Now().UTC(),
		}).Error
}
