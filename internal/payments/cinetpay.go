package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

const (
	ProviderCinetPay = "cinetpay"

	cinetpayTokenHeader = "X-Token"
	cinetpayAccepted    = "ACCEPTED"
	cinetpayCodeOK      = "00"
	cinetpayCodeCreated = "201"
)

type CinetPayConfig struct {
	APIKey     string
	SiteID     string
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type CinetPayAdapter struct {
	log      *logger.Logger
	cfg      CinetPayConfig
	verifier Verifier
	api      *apiClient
	checker  StatusChecker
}

func NewCinetPay(log *logger.Logger, cfg CinetPayConfig) *CinetPayAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api-checkout.cinetpay.com"
	}
	l := log.With("adapter", "CinetPayAdapter")
	a := &CinetPayAdapter{
		log:      l,
		cfg:      cfg,
		verifier: NewHMACVerifier(ProviderCinetPay, cinetpayTokenHeader, EncodingHex),
		api:      newAPIClient(l, cfg.BaseURL, cfg.Timeout, cfg.MaxRetries, nil),
	}
	a.checker = a
	return a
}

func (a *CinetPayAdapter) Provider() string { return ProviderCinetPay }

func (a *CinetPayAdapter) Parse(ctx context.Context, req InboundRequest) (Outcome, error) {
	var (
		vr      VerificationResult
		transID string
	)
	switch req.Kind {
	case KindReturn:
		transID = firstNonEmpty(req.Query.Get("transaction_id"), req.Query.Get("cpm_trans_id"))
	default:
		var err error
		vr, err = Authenticate(a.verifier, req.Headers, req.Body, req.ReceivedAt, a.cfg.SecretKey)
		if err != nil {
			return Outcome{Verification: vr}, err
		}
		transID, err = cinetpayNotificationRef(req.Headers.Get("Content-Type"), req.Body)
		if err != nil {
			return Outcome{Verification: vr}, err
		}
	}
	transID = strings.TrimSpace(transID)
	if transID == "" {
		return Outcome{Verification: vr}, fmt.Errorf("%w: cinetpay notification without transaction id", domainerrs.ErrMalformedPayload)
	}
	vr.ProviderEventID = transID

	status, err := a.checker.CheckStatus(ctx, transID)
	if err != nil {
		return Outcome{Verification: vr}, fmt.Errorf("cinetpay status check %s: %w", transID, err)
	}
	if !status.Succeeded {
		return ignored("provider status "+status.Status, vr), nil
	}

	userID, target, err := ResolveTarget(status.Metadata)
	if err != nil {
		return Outcome{Verification: vr}, err
	}
	return Outcome{
		Verification: vr,
		Event: &Event{
			Provider:    ProviderCinetPay,
			ProviderRef: transID,
			UserID:      userID,
			Amount:      status.Amount,
			Currency:    status.Currency,
			Target:      target,
			Metadata:    metadataAny(status.Metadata),
		},
	}, nil
}

// cinetpayNotificationRef extracts cpm_trans_id from a form or JSON body.
func cinetpayNotificationRef(contentType string, body []byte) (string, error) {
	if strings.Contains(strings.ToLower(contentType), "json") {
		var payload struct {
			TransID string `json:"cpm_trans_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", fmt.Errorf("%w: cinetpay notification: %v", domainerrs.ErrMalformedPayload, err)
		}
		return payload.TransID, nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return "", fmt.Errorf("%w: cinetpay notification: %v", domainerrs.ErrMalformedPayload, err)
	}
	return form.Get("cpm_trans_id"), nil
}

type cinetpayCheckResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Amount        flexAmount      `json:"amount"`
		Currency      string          `json:"currency"`
		Status        string          `json:"status"`
		PaymentMethod string          `json:"payment_method"`
		OperatorID    string          `json:"operator_id"`
		Metadata      json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// CheckStatus calls the payment/check endpoint.
func (a *CinetPayAdapter) CheckStatus(ctx context.Context, ref string) (VerifiedPayment, error) {
	body := map[string]string{
		"apikey":         a.cfg.APIKey,
		"site_id":        a.cfg.SiteID,
		"transaction_id": ref,
	}
	var out cinetpayCheckResponse
	if err := a.api.doJSON(ctx, http.MethodPost, "/v2/payment/check", body, &out); err != nil {
		return VerifiedPayment{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(out.Data.Currency))
	status := strings.ToUpper(strings.TrimSpace(out.Data.Status))
	md := stringMap(out.Data.Metadata)
	if out.Data.PaymentMethod != "" {
		md["payment_method"] = out.Data.PaymentMethod
	}
	if out.Data.OperatorID != "" {
		md["operator_id"] = out.Data.OperatorID
	}
	return VerifiedPayment{
		Reference: ref,
		Status:    status,
		Succeeded: out.Code == cinetpayCodeOK && status == cinetpayAccepted,
		Amount:    ToMinorUnits(float64(out.Data.Amount), currency),
		Currency:  currency,
		Metadata:  md,
	}, nil
}

type cinetpayInitResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	} `json:"data"`
}

func (a *CinetPayAdapter) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" || strings.TrimSpace(a.cfg.SiteID) == "" {
		return CheckoutSession{}, fmt.Errorf("cinetpay: missing CINETPAY_API_KEY or CINETPAY_SITE_ID")
	}
	md, err := json.Marshal(TargetMetadata(req.UserID, req.Target))
	if err != nil {
		return CheckoutSession{}, err
	}
	body := map[string]any{
		"apikey":         a.cfg.APIKey,
		"site_id":        a.cfg.SiteID,
		"transaction_id": req.Reference,
		"amount":         FromMinorUnits(req.Amount, req.Currency),
		"currency":       req.Currency,
		"description":    req.Description,
		"notify_url":     req.NotifyURL,
		"return_url":     req.ReturnURL,
		"channels":       "ALL",
		"metadata":       string(md),
	}
	if req.Email != "" {
		body["customer_email"] = req.Email
	}
	var out cinetpayInitResponse
	if err := a.api.doJSON(ctx, http.MethodPost, "/v2/payment", body, &out); err != nil {
		return CheckoutSession{}, fmt.Errorf("cinetpay checkout: %w", err)
	}
	if out.Code != cinetpayCodeCreated || out.Data.PaymentURL == "" {
		return CheckoutSession{}, fmt.Errorf("cinetpay checkout: code %s: %s", out.Code, out.Message)
	}
	return CheckoutSession{Provider: ProviderCinetPay, Reference: req.Reference, CheckoutURL: out.Data.PaymentURL}, nil
}
