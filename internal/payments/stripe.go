package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

const (
	ProviderStripe = "stripe"

	stripeCheckoutCompleted = "checkout.session.completed"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Tolerance     time.Duration
	Timeout       time.Duration
	MaxRetries    int
}

type StripeAdapter struct {
	log      *logger.Logger
	cfg      StripeConfig
	verifier Verifier
	api      *apiClient
}

func NewStripe(log *logger.Logger, cfg StripeConfig) *StripeAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	key := strings.TrimSpace(cfg.SecretKey)
	l := log.With("adapter", "StripeAdapter")
	return &StripeAdapter{
		log:      l,
		cfg:      cfg,
		verifier: NewStripeV1Verifier(ProviderStripe, cfg.Tolerance),
		api: newAPIClient(l, cfg.BaseURL, cfg.Timeout, cfg.MaxRetries, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+key)
		}),
	}
}

func (a *StripeAdapter) Provider() string { return ProviderStripe }

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeSession struct {
	ID                string            `json:"id"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     string            `json:"payment_intent"`
	ReceiptURL        string            `json:"receipt_url"`
	Metadata          map[string]string `json:"metadata"`
}

func (a *StripeAdapter) Parse(ctx context.Context, req InboundRequest) (Outcome, error) {
	if req.Kind == KindReturn {
		return ignored("stripe confirms through webhooks only", VerificationResult{}), nil
	}
	vr, err := Authenticate(a.verifier, req.Headers, req.Body, req.ReceivedAt, a.cfg.WebhookSecret)
	if err != nil {
		return Outcome{Verification: vr}, err
	}

	var env stripeEnvelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return Outcome{Verification: vr}, fmt.Errorf("%w: stripe event: %v", domainerrs.ErrMalformedPayload, err)
	}
	vr.ProviderEventID = env.ID
	vr.EventType = env.Type
	if env.Type != stripeCheckoutCompleted {
		return ignored("unhandled event type "+env.Type, vr), nil
	}

	var sess stripeSession
	if err := json.Unmarshal(env.Data.Object, &sess); err != nil || strings.TrimSpace(sess.ID) == "" {
		return Outcome{Verification: vr}, fmt.Errorf("%w: stripe checkout session", domainerrs.ErrMalformedPayload)
	}
	if sess.PaymentStatus != "paid" && sess.PaymentStatus != "no_payment_required" {
		return ignored("payment status "+sess.PaymentStatus, vr), nil
	}

	md := sess.Metadata
	if md == nil {
		md = map[string]string{}
	}
	if strings.TrimSpace(md[MetaUserID]) == "" && sess.ClientReferenceID != "" {
		md[MetaUserID] = sess.ClientReferenceID
	}
	userID, target, err := ResolveTarget(md)
	if err != nil {
		return Outcome{Verification: vr}, err
	}

	meta := metadataAny(md)
	meta["event_id"] = env.ID
	if sess.PaymentIntent != "" {
		meta["payment_intent"] = sess.PaymentIntent
	}
	return Outcome{
		Verification: vr,
		Event: &Event{
			Provider:    ProviderStripe,
			ProviderRef: sess.ID,
			UserID:      userID,
			Amount:      sess.AmountTotal,
			Currency:    strings.ToUpper(sess.Currency),
			Target:      target,
			ReceiptRef:  strings.TrimSpace(sess.ReceiptURL),
			Metadata:    meta,
		},
	}, nil
}

type stripeCheckoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout opens a hosted checkout session. The session id becomes the
// provider reference that the webhook later reports.
func (a *StripeAdapter) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if strings.TrimSpace(a.cfg.SecretKey) == "" {
		return CheckoutSession{}, fmt.Errorf("stripe: missing STRIPE_SECRET_KEY")
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.ReturnURL)
	form.Set("cancel_url", firstNonEmpty(req.CancelURL, req.ReturnURL))
	form.Set("client_reference_id", req.UserID.String())
	if req.Email != "" {
		form.Set("customer_email", req.Email)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	for k, v := range TargetMetadata(req.UserID, req.Target) {
		form.Set("metadata["+k+"]", v)
	}

	var out stripeCheckoutResponse
	if err := a.api.do(ctx, http.MethodPost, "/v1/checkout/sessions", "application/x-www-form-urlencoded", []byte(form.Encode()), &out); err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe checkout: %w", err)
	}
	if out.ID == "" || out.URL == "" {
		return CheckoutSession{}, fmt.Errorf("stripe checkout: empty session in response")
	}
	return CheckoutSession{Provider: ProviderStripe, Reference: out.ID, CheckoutURL: out.URL}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
