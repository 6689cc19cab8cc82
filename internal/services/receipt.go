package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/observability"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/gcp"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

type ReceiptIssuer struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	TaxID   string `json:"tax_id" yaml:"tax_id"`
	Email   string `json:"email" yaml:"email"`
}

type ReceiptCustomer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type ReceiptData struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Customer      ReceiptCustomer `json:"customer"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	Provider      string          `json:"provider"`
	ProviderRef   string          `json:"provider_ref"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
	IssuedAt      time.Time       `json:"issued_at"`
	Issuer        ReceiptIssuer   `json:"issuer"`
}

type ReceiptService interface {
	// Synthesize stores a receipt document for row and backfills its receipt_ref.
	Synthesize(ctx context.Context, row *types.Transaction) (string, error)
	GetReceipt(ctx context.Context, requesterID, transactionID uuid.UUID) (*ReceiptData, error)
}

type receiptService struct {
	log      *logger.Logger
	ledger   repos.LedgerRepo
	users    repos.UserRepo
	profiles repos.ProfileRepo
	projects repos.ProjectRepo
	bucket   gcp.BucketService
	issuer   ReceiptIssuer
}

func NewReceiptService(
	log *logger.Logger,
	ledger repos.LedgerRepo,
	users repos.UserRepo,
	profiles repos.ProfileRepo,
	projects repos.ProjectRepo,
	bucket gcp.BucketService,
	issuer ReceiptIssuer,
) ReceiptService {
	return &receiptService{
		log:      log.With("service", "ReceiptService"),
		ledger:   ledger,
		users:    users,
		profiles: profiles,
		projects: projects,
		bucket:   bucket,
		issuer:   issuer,
	}
}

func receiptKey(row *types.Transaction) string {
	created := row.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return fmt.Sprintf("receipts/%04d/%s.json", created.UTC().Year(), row.ID)
}

func (s *receiptService) Synthesize(ctx context.Context, row *types.Transaction) (string, error) {
	if row == nil {
		return "", fmt.Errorf("%w: nil transaction", domainerrs.ErrInvalidArgument)
	}
	if s.bucket == nil {
		return "", fmt.Errorf("receipt storage not configured")
	}
	data, err := s.build(ctx, row)
	if err != nil {
		return "", err
	}
	key := receiptKey(row)
	data.ReceiptRef = key

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	if err := s.bucket.Upload(ctx, gcp.BucketCategoryArtifact, key, "application/json", raw); err != nil {
		observability.Current().IncReceipt("upload_failed")
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	if err := s.ledger.SetReceiptRef(ctx, nil, row.ID, key); err != nil {
		return "", fmt.Errorf("backfill receipt_ref: %w", err)
	}
	observability.Current().IncReceipt("stored")
	s.log.Debug("Receipt stored", "transaction_id", row.ID, "key", key)
	return key, nil
}

// GetReceipt is limited to the payer and admins. A stored receipt document
// is served as issued; a missing one is synthesized on the way.
func (s *receiptService) GetReceipt(ctx context.Context, requesterID, transactionID uuid.UUID) (*ReceiptData, error) {
	if requesterID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	row, err := s.ledger.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: transaction", domainerrs.ErrNotFound)
	}
	if row.UserID != requesterID {
		requester, err := s.profiles.GetByID(ctx, nil, requesterID)
		if err != nil {
			return nil, err
		}
		if !requester.IsAdmin() {
			return nil, fmt.Errorf("%w: receipt belongs to another user", domainerrs.ErrPermissionDenied)
		}
	}

	if row.ReceiptRef != "" && s.bucket != nil {
		stored, err := s.stored(ctx, row.ReceiptRef)
		if err == nil {
			return stored, nil
		}
		s.log.Warn("Stored receipt unreadable, rebuilding", "transaction_id", row.ID, "key", row.ReceiptRef, "error", err)
	}
	if row.ReceiptRef == "" && s.bucket != nil {
		if ref, err := s.Synthesize(ctx, row); err != nil {
			s.log.Warn("Lazy receipt synthesis failed", "transaction_id", row.ID, "error", err)
		} else {
			row.ReceiptRef = ref
		}
	}

	data, err := s.build(ctx, row)
	if err != nil {
		return nil, err
	}
	data.ReceiptRef = row.ReceiptRef
	return data, nil
}

func (s *receiptService) stored(ctx context.Context, key string) (*ReceiptData, error) {
	raw, err := s.bucket.Download(ctx, gcp.BucketCategoryArtifact, key)
	if err != nil {
		return nil, err
	}
	var data ReceiptData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", key, err)
	}
	data.ReceiptRef = key
	return &data, nil
}

func (s *receiptService) build(ctx context.Context, row *types.Transaction) (*ReceiptData, error) {
	account, err := s.users.GetByID(ctx, nil, row.UserID)
	if err != nil {
		return nil, fmt.Errorf("load payer: %w", err)
	}
	profile, err := s.profiles.GetByID(ctx, nil, row.UserID)
	if err != nil {
		return nil, fmt.Errorf("load payer profile: %w", err)
	}
	customer := ReceiptCustomer{ID: row.UserID, Name: displayName(profile, account)}
	if account != nil {
		customer.Email = account.Email
	}

	return &ReceiptData{
		TransactionID: row.ID,
		Customer:      customer,
		Amount:        row.Amount,
		Currency:      row.Currency,
		Description:   s.describe(ctx, row),
		Provider:      row.Provider,
		ProviderRef:   row.ProviderRef,
		IssuedAt:      row.CreatedAt.UTC(),
		Issuer:        s.issuer,
	}, nil
}

func (s *receiptService) describe(ctx context.Context, row *types.Transaction) string {
	switch row.TargetType {
	case billing.TargetMission:
		if id, err := uuid.Parse(row.TargetRef); err == nil {
			if p, err := s.projects.GetByID(ctx, nil, id); err == nil && p != nil && strings.TrimSpace(p.Title) != "" {
				return "Mission: " + p.Title
			}
		}
		return "Mission " + row.TargetRef
	case billing.TargetFormation:
		pack := user.Pack(row.TargetRef)
		return fmt.Sprintf("Formation pack %s (%d months)", pack, policy.PackMonths(pack))
	default:
		return string(row.TargetType)
	}
}
