package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/observability"
	"github.com/yungbote/entitlement-engine/internal/payments"
	"github.com/yungbote/entitlement-engine/internal/pkg/dbctx"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

type ReconcileStatus string

const (
	ReconcileProcessed ReconcileStatus = "processed"
	ReconcileDuplicate ReconcileStatus = "duplicate"
)

// ReconcileResult reports what happened to one payment event. A duplicate is
// a successful outcome, not an error.
type ReconcileResult struct {
	Status        ReconcileStatus `json:"status"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
}

func (r *ReconcileResult) Duplicate() bool { return r != nil && r.Status == ReconcileDuplicate }

// ReplayCache is an optional fast path in front of the ledger lookup.
type ReplayCache interface {
	Seen(ctx context.Context, provider, providerRef string) (receiptRef string, ok bool, err error)
	Remember(ctx context.Context, provider, providerRef, receiptRef string) error
}

// ReconcileService is the single entry point through which confirmed
// payments change entitlements.
type ReconcileService interface {
	Reconcile(ctx context.Context, ev payments.Event) (*ReconcileResult, error)
}

type reconcileService struct {
	db       *gorm.DB
	log      *logger.Logger
	ledger   repos.LedgerRepo
	projects repos.ProjectRepo
	profiles repos.ProfileRepo
	receipts ReceiptService
	notifier PaymentNotifier
	replay   ReplayCache
	now      func() time.Time
}

func NewReconcileService(
	db *gorm.DB,
	log *logger.Logger,
	ledger repos.LedgerRepo,
	projects repos.ProjectRepo,
	profiles repos.ProfileRepo,
	receipts ReceiptService,
	notifier PaymentNotifier,
	replay ReplayCache,
) ReconcileService {
	return &reconcileService{
		db:       db,
		log:      log.With("service", "ReconcileService"),
		ledger:   ledger,
		projects: projects,
		profiles: profiles,
		receipts: receipts,
		notifier: notifier,
		replay:   replay,
		now:      time.Now,
	}
}

func (s *reconcileService) Reconcile(ctx context.Context, ev payments.Event) (*ReconcileResult, error) {
	start := time.Now()
	res, err := s.reconcile(ctx, ev)
	status := "error"
	if err == nil {
		status = string(res.Status)
	}
	target := "unknown"
	if ev.Target != nil {
		target = string(ev.Target.Type())
	}
	observability.Current().ObserveReconcile(ev.Provider, target, status, time.Since(start))
	return res, err
}

func (s *reconcileService) reconcile(ctx context.Context, ev payments.Event) (*ReconcileResult, error) {
	if err := ev.Validate(); err != nil {
		s.log.Warn("Rejecting payment event", "provider", ev.Provider, "provider_ref", ev.ProviderRef, "error", err)
		return nil, err
	}

	if s.replay != nil {
		receiptRef, ok, err := s.replay.Seen(ctx, ev.Provider, ev.ProviderRef)
		if err != nil {
			s.log.Warn("Replay cache lookup failed", "provider", ev.Provider, "error", err)
		} else if ok {
			return &ReconcileResult{Status: ReconcileDuplicate, ReceiptRef: receiptRef}, nil
		}
	}

	existing, err := s.ledger.GetByProviderRef(ctx, nil, ev.Provider, ev.ProviderRef)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if existing != nil {
		return s.duplicate(ctx, existing), nil
	}

	now := s.now().UTC()
	row := &types.Transaction{
		ID:          uuid.New(),
		Provider:    ev.Provider,
		ProviderRef: ev.ProviderRef,
		UserID:      ev.UserID,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		TargetType:  ev.Target.Type(),
		TargetRef:   ev.Target.Ref(),
		Status:      billing.TransactionSuccess,
		ReceiptRef:  ev.ReceiptRef,
	}
	if len(ev.Metadata) > 0 {
		if raw, err := json.Marshal(ev.Metadata); err == nil {
			row.Metadata = datatypes.JSON(raw)
		}
	}

	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := s.scope(dbctx.New(ctx, tx))
		ok, err := scope.ledger.Insert(scope.dbc.Ctx, scope.dbc.Tx, row)
		if err != nil {
			return fmt.Errorf("ledger insert: %w", err)
		}
		if !ok {
			return nil
		}
		inserted = true
		return scope.applyEffect(ev, now)
	})
	if err != nil {
		s.log.Error("Reconciliation failed", "provider", ev.Provider, "provider_ref", ev.ProviderRef, "error", err)
		return nil, err
	}

	if !inserted {
		winner, err := s.ledger.GetByProviderRef(ctx, nil, ev.Provider, ev.ProviderRef)
		if err != nil || winner == nil {
			return &ReconcileResult{Status: ReconcileDuplicate}, nil
		}
		return s.duplicate(ctx, winner), nil
	}

	s.log.Info("Payment reconciled",
		"provider", ev.Provider,
		"provider_ref", ev.ProviderRef,
		"transaction_id", row.ID,
		"user_id", ev.UserID,
		"target_type", row.TargetType,
		"target_ref", row.TargetRef,
	)

	if row.ReceiptRef == "" && s.receipts != nil {
		ref, err := s.receipts.Synthesize(ctx, row)
		if err != nil {
			s.log.Warn("Receipt synthesis failed", "transaction_id", row.ID, "error", err)
		} else {
			row.ReceiptRef = ref
		}
	}

	if s.replay != nil {
		if err := s.replay.Remember(ctx, ev.Provider, ev.ProviderRef, row.ReceiptRef); err != nil {
			s.log.Warn("Replay cache write failed", "provider", ev.Provider, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyPayment(ctx, row); err != nil {
			s.log.Warn("Payment notification fan-out incomplete", "transaction_id", row.ID, "error", err)
		}
	}

	return &ReconcileResult{Status: ReconcileProcessed, TransactionID: row.ID, ReceiptRef: row.ReceiptRef}, nil
}

func (s *reconcileService) duplicate(ctx context.Context, row *types.Transaction) *ReconcileResult {
	if s.replay != nil {
		if err := s.replay.Remember(ctx, row.Provider, row.ProviderRef, row.ReceiptRef); err != nil {
			s.log.Warn("Replay cache write failed", "provider", row.Provider, "error", err)
		}
	}
	return &ReconcileResult{Status: ReconcileDuplicate, TransactionID: row.ID, ReceiptRef: row.ReceiptRef}
}

// reconcileScope is the whole write capability of the webhook path: the
// ledger, the paid project and the payer's profile, bound to one transaction.
type reconcileScope struct {
	dbc      dbctx.Context
	ledger   repos.LedgerRepo
	projects repos.ProjectRepo
	profiles repos.ProfileRepo
}

func (s *reconcileService) scope(dbc dbctx.Context) reconcileScope {
	return reconcileScope{dbc: dbc, ledger: s.ledger, projects: s.projects, profiles: s.profiles}
}

func (s reconcileScope) applyEffect(ev payments.Event, now time.Time) error {
	ctx, tx := s.dbc.Ctx, s.dbc.Tx
	switch t := ev.Target.(type) {
	case payments.MissionTarget:
		project, err := s.projects.GetForUpdate(ctx, tx, t.ProjectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("%w: project %s does not exist", domainerrs.ErrUnknownTargetSchema, t.ProjectID)
		}
		next := project.Status
		if project.Status.Fundable() {
			next = billing.ProjectOpen
		}
		return s.projects.MarkPaid(ctx, tx, project.ID, next)

	case payments.FormationTarget:
		profile, err := s.profiles.GetForUpdate(ctx, tx, ev.UserID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		if profile == nil {
			return fmt.Errorf("%w: profile %s does not exist", domainerrs.ErrUnknownTargetSchema, ev.UserID)
		}
		start := now
		if profile.SubscriptionStart != nil && profile.HasActiveSubscription(now) {
			start = profile.SubscriptionStart.UTC()
		}
		end := policy.ExtendSubscription(profile.SubscriptionEnd, now, t.Pack)
		pack := policy.MergePack(profile.Pack, t.Pack)
		return s.profiles.UpdateSubscription(ctx, tx, profile.ID, pack, start, end)

	default:
		return fmt.Errorf("%w: %T", domainerrs.ErrUnknownTargetSchema, t)
	}
}
