package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/payments"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

// PackPrice is a catalog entry, in minor units.
type PackPrice struct {
	Amount   int64  `yaml:"amount" json:"amount"`
	Currency string `yaml:"currency" json:"currency"`
}

type CheckoutConfig struct {
	Packs map[user.Pack]PackPrice
	// PublicBaseURL prefixes the webhook and return routes handed to providers.
	PublicBaseURL string
	SuccessURL    string
	CancelURL     string
}

type CheckoutInput struct {
	Provider   string             `json:"provider"`
	TargetType billing.TargetType `json:"target_type"`
	ProjectID  uuid.UUID          `json:"project_id"`
	Pack       user.Pack          `json:"pack_type"`
}

// GatewayResolver is satisfied by *payments.Registry.
type GatewayResolver interface {
	Gateway(provider string) (payments.CheckoutGateway, error)
}

type CheckoutService interface {
	Initiate(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*payments.CheckoutSession, error)
}

type checkoutService struct {
	log      *logger.Logger
	gateways GatewayResolver
	projects repos.ProjectRepo
	users    repos.UserRepo
	cfg      CheckoutConfig
}

func NewCheckoutService(log *logger.Logger, gateways GatewayResolver, projects repos.ProjectRepo, users repos.UserRepo, cfg CheckoutConfig) CheckoutService {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &checkoutService{
		log:      log.With("service", "CheckoutService"),
		gateways: gateways,
		projects: projects,
		users:    users,
		cfg:      cfg,
	}
}

// Initiate prices the target server-side and opens a checkout with the
// provider. Caller-supplied amounts are never accepted.
func (s *checkoutService) Initiate(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*payments.CheckoutSession, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	gateway, err := s.gateways.Gateway(provider)
	if err != nil {
		return nil, err
	}

	req := payments.CheckoutRequest{
		Reference: uuid.NewString(),
		UserID:    userID,
		ReturnURL: s.cfg.SuccessURL,
		CancelURL: s.cfg.CancelURL,
	}
	if s.cfg.PublicBaseURL != "" {
		req.NotifyURL = s.cfg.PublicBaseURL + "/api/webhooks/" + provider
		if req.ReturnURL == "" {
			req.ReturnURL = s.cfg.PublicBaseURL + "/api/payments/" + provider + "/return"
		}
	}

	switch in.TargetType {
	case billing.TargetMission:
		project, err := s.projects.GetByID(ctx, nil, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: project", domainerrs.ErrNotFound)
		}
		if project.ClientID != userID {
			return nil, fmt.Errorf("%w: project belongs to another client", domainerrs.ErrPermissionDenied)
		}
		if project.PaymentStatus == billing.PaymentPaid {
			return nil, fmt.Errorf("%w: project already paid", domainerrs.ErrInvalidArgument)
		}
		if project.FinalPrice <= 0 {
			return nil, fmt.Errorf("%w: project has no price", domainerrs.ErrInvalidArgument)
		}
		req.Target = payments.MissionTarget{ProjectID: project.ID}
		req.Amount = project.FinalPrice
		req.Currency = project.Currency
		req.Description = "Mission: " + project.Title

	case billing.TargetFormation:
		if !in.Pack.Valid() {
			return nil, fmt.Errorf("%w: pack_type %q", domainerrs.ErrInvalidArgument, in.Pack)
		}
		price, ok := s.cfg.Packs[in.Pack]
		if !ok || price.Amount <= 0 {
			return nil, fmt.Errorf("%w: no price configured for pack %q", domainerrs.ErrInvalidArgument, in.Pack)
		}
		req.Target = payments.FormationTarget{Pack: in.Pack}
		req.Amount = price.Amount
		req.Currency = price.Currency
		req.Description = fmt.Sprintf("Formation pack %s (%d months)", in.Pack, policy.PackMonths(in.Pack))

	default:
		return nil, fmt.Errorf("%w: target_type %q", domainerrs.ErrInvalidArgument, in.TargetType)
	}

	if account, err := s.users.GetByID(ctx, nil, userID); err != nil {
		return nil, err
	} else if account != nil {
		req.Email = account.Email
	}

	session, err := gateway.CreateCheckout(ctx, req)
	if err != nil {
		s.log.Error("Checkout creation failed", "provider", provider, "user_id", userID, "target_type", in.TargetType, "error", err)
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	s.log.Info("Checkout created",
		"provider", provider,
		"reference", session.Reference,
		"user_id", userID,
		"target_type", in.TargetType,
		"amount", req.Amount,
		"currency", req.Currency,
	)
	return &session, nil
}
