package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	billingtypes "github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// LedgerRepo persists processed payment events. Rows are unique per
// (provider, provider_ref) and are never updated apart from the receipt backfill.
type LedgerRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transaction, error)
	GetByProviderRef(ctx context.Context, tx *gorm.DB, provider, providerRef string) (*types.Transaction, error)
	// Insert writes row unless (provider, provider_ref) already exists.
	// inserted is false when another delivery got there first.
	Insert(ctx context.Context, tx *gorm.DB, row *types.Transaction) (inserted bool, err error)
	SetReceiptRef(ctx context.Context, tx *gorm.DB, id uuid.UUID, receiptRef string) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Transaction, error)
	// ListMissingReceipts returns successful rows whose receipt upload never landed, oldest first.
	ListMissingReceipts(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Transaction, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	repoLog := baseLog.With("repo", "LedgerRepo")
	return &ledgerRepo{db: db, log: repoLog}
}

func (r *ledgerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Transaction
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) GetByProviderRef(ctx context.Context, tx *gorm.DB, provider, providerRef string) (*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	provider = strings.TrimSpace(provider)
	providerRef = strings.TrimSpace(providerRef)
	if provider == "" || providerRef == "" {
		return nil, nil
	}
	var row types.Transaction
	if err := transaction.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", provider, providerRef).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) Insert(ctx context.Context, tx *gorm.DB, row *types.Transaction) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	// ON CONFLICT DO NOTHING keeps a postgres transaction usable after a
	// duplicate; a failed INSERT would abort it.
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_ref"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ledgerRepo) SetReceiptRef(ctx context.Context, tx *gorm.DB, id uuid.UUID, receiptRef string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || strings.TrimSpace(receiptRef) == "" {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("id = ? AND (receipt_ref IS NULL OR receipt_ref = '')", id).
		Updates(map[string]interface{}{
			"receipt_ref": receiptRef,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *ledgerRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Transaction
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) ListMissingReceipts(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var out []*types.Transaction
	if err := transaction.WithContext(ctx).
		Where("status = ? AND (receipt_ref IS NULL OR receipt_ref = '')", billingtypes.TransactionSuccess).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
