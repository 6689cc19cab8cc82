package learning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type CertificateRepo interface {
	GetByUserCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error)
	GetByNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Certificate, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.Certificate) error
	SetStorageKey(ctx context.Context, tx *gorm.DB, id uuid.UUID, key string) error
	// Delete removes the row permanently so (user, course) can be issued again.
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return &certificateRepo{db: db, log: baseLog.With("repo", "CertificateRepo")}
}

func (r *certificateRepo) GetByUserCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var row types.Certificate
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *certificateRepo) GetByNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if number == "" {
		return nil, nil
	}
	var row types.Certificate
	if err := transaction.WithContext(ctx).
		Where("certificate_number = ?", number).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *certificateRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Certificate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *certificateRepo) SetStorageKey(ctx context.Context, tx *gorm.DB, id uuid.UUID, key string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Certificate{}).
		Where("id = ?", id).
		Update("storage_key", key).Error
}

func (r *certificateRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Certificate{}).Error
}
