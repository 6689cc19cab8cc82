package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbpkg "github.com/yungbote/entitlement-engine/internal/data/db"
	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/notify"
	"github.com/yungbote/entitlement-engine/internal/observability"
	"github.com/yungbote/entitlement-engine/internal/payments"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/platform/sendgrid"
)

// PaymentNotifier fans a reconciled payment out to the payer and every admin.
type PaymentNotifier interface {
	NotifyPayment(ctx context.Context, row *types.Transaction) error
}

type NotificationService interface {
	PaymentNotifier
	notify.Handler
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Notification, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

type notificationService struct {
	log           *logger.Logger
	queue         notify.Queue
	notifications repos.NotificationRepo
	profiles      repos.ProfileRepo
	users         repos.UserRepo
	mailer        sendgrid.Client
	from          sendgrid.EmailAddress
	now           func() time.Time
}

// NewNotificationService wires the outbox. mailer may be nil, in which case
// only in-app notifications are written.
func NewNotificationService(
	log *logger.Logger,
	queue notify.Queue,
	notifications repos.NotificationRepo,
	profiles repos.ProfileRepo,
	users repos.UserRepo,
	mailer sendgrid.Client,
	from sendgrid.EmailAddress,
) NotificationService {
	return &notificationService{
		log:           log.With("service", "NotificationService"),
		queue:         queue,
		notifications: notifications,
		profiles:      profiles,
		users:         users,
		mailer:        mailer,
		from:          from,
		now:           time.Now,
	}
}

func (s *notificationService) NotifyPayment(ctx context.Context, row *types.Transaction) error {
	if row == nil {
		return nil
	}
	amount := payments.FormatAmount(row.Amount, row.Currency)
	payload := map[string]any{
		"transaction_id": row.ID.String(),
		"provider":       row.Provider,
		"amount":         row.Amount,
		"currency":       row.Currency,
		"target_type":    string(row.TargetType),
		"target_ref":     row.TargetRef,
	}
	now := s.now().UTC()

	tasks := []notify.Task{{
		ID:          uuid.New(),
		RecipientID: row.UserID,
		Kind:        billing.NotificationPaymentReceived,
		Title:       "Payment received",
		Body:        fmt.Sprintf("We received your payment of %s.", amount),
		Payload:     payload,
		EnqueuedAt:  now,
	}}

	admins, err := s.profiles.ListIDsByRole(ctx, nil, user.RoleAdmin)
	if err != nil {
		s.log.Warn("Admin lookup failed", "transaction_id", row.ID, "error", err)
	}
	for _, adminID := range admins {
		tasks = append(tasks, notify.Task{
			ID:          uuid.New(),
			RecipientID: adminID,
			Kind:        billing.NotificationAdminPayment,
			Title:       "New payment",
			Body:        fmt.Sprintf("%s payment of %s for %s %s.", row.Provider, amount, row.TargetType, row.TargetRef),
			Payload:     payload,
			EnqueuedAt:  now,
		})
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, t := range tasks {
		if qerr := s.queue.Enqueue(ctx, t); qerr != nil {
			s.log.Warn("Notification enqueue failed", "recipient_id", t.RecipientID, "kind", t.Kind, "error", qerr)
			errs = append(errs, fmt.Errorf("enqueue %s for %s: %w", t.Kind, t.RecipientID, qerr))
		}
	}
	return errors.Join(errs...)
}

// Deliver writes the in-app row and sends the optional email. The row id is
// the task id, so a redelivered task does not duplicate the notification.
func (s *notificationService) Deliver(ctx context.Context, t notify.Task) error {
	var payload datatypes.JSON
	if len(t.Payload) > 0 {
		raw, err := json.Marshal(t.Payload)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(raw)
	}
	err := s.notifications.Create(ctx, nil, &types.Notification{
		ID:          t.ID,
		RecipientID: t.RecipientID,
		Kind:        t.Kind,
		Title:       t.Title,
		Body:        t.Body,
		Payload:     payload,
	})
	if err != nil && !dbpkg.IsUniqueViolation(err) {
		observability.Current().IncNotificationDelivery(string(t.Kind), "store_failed")
		return fmt.Errorf("store notification: %w", err)
	}
	if err != nil {
		// Already stored by an earlier attempt; the email is what failed.
		s.log.Debug("Notification row already present", "task_id", t.ID)
	}

	if s.mailer == nil || strings.TrimSpace(s.from.Email) == "" {
		observability.Current().IncNotificationDelivery(string(t.Kind), "stored")
		return nil
	}
	account, err := s.users.GetByID(ctx, nil, t.RecipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if account == nil || strings.TrimSpace(account.Email) == "" {
		return nil
	}
	_, err = s.mailer.Send(ctx, sendgrid.SendEmailRequest{
		From:       s.from,
		To:         []sendgrid.EmailAddress{{Email: account.Email}},
		Subject:    t.Title,
		Text:       t.Body,
		Categories: []string{string(t.Kind)},
		CustomArgs: map[string]string{"notification_id": t.ID.String()},
	})
	if err != nil {
		observability.Current().IncNotificationDelivery(string(t.Kind), "email_failed")
		return fmt.Errorf("send email: %w", err)
	}
	observability.Current().IncNotificationDelivery(string(t.Kind), "emailed")
	return nil
}

func (s *notificationService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Notification, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	return s.notifications.ListByRecipient(ctx, nil, userID, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if userID == uuid.Nil {
		return domainerrs.ErrAuthenticationRequired
	}
	return s.notifications.MarkRead(ctx, nil, userID, ids)
}
