package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

const (
	ProviderFlutterwave = "flutterwave"

	flutterwaveSignatureHeader = "flutterwave-signature"
	flutterwaveChargeCompleted = "charge.completed"
	flutterwaveSuccessful      = "successful"
)

type FlutterwaveConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
}

type FlutterwaveAdapter struct {
	log      *logger.Logger
	cfg      FlutterwaveConfig
	verifier Verifier
	api      *apiClient
	checker  StatusChecker
}

func NewFlutterwave(log *logger.Logger, cfg FlutterwaveConfig) *FlutterwaveAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.flutterwave.com"
	}
	key := strings.TrimSpace(cfg.SecretKey)
	l := log.With("adapter", "FlutterwaveAdapter")
	a := &FlutterwaveAdapter{
		log:      l,
		cfg:      cfg,
		verifier: NewHMACVerifier(ProviderFlutterwave, flutterwaveSignatureHeader, EncodingBase64),
		api: newAPIClient(l, cfg.BaseURL, cfg.Timeout, cfg.MaxRetries, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+key)
		}),
	}
	a.checker = a
	return a
}

func (a *FlutterwaveAdapter) Provider() string { return ProviderFlutterwave }

type flutterwaveWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64      `json:"id"`
		TxRef    string     `json:"tx_ref"`
		Amount   flexAmount `json:"amount"`
		Currency string     `json:"currency"`
		Status   string     `json:"status"`
	} `json:"data"`
}

// claim is what the caller said about the payment before re-verification.
type flutterwaveClaim struct {
	transactionID string
	txRef         string
	amount        int64
	currency      string
	hasAmount     bool
}

func (a *FlutterwaveAdapter) Parse(ctx context.Context, req InboundRequest) (Outcome, error) {
	var (
		vr    VerificationResult
		claim flutterwaveClaim
	)
	switch req.Kind {
	case KindReturn:
		if s := strings.ToLower(strings.TrimSpace(req.Query.Get("status"))); s != "" && s != flutterwaveSuccessful && s != "completed" {
			return ignored("client reported status "+s, vr), nil
		}
		claim.transactionID = strings.TrimSpace(req.Query.Get("transaction_id"))
		claim.txRef = strings.TrimSpace(req.Query.Get("tx_ref"))
	default:
		var err error
		vr, err = Authenticate(a.verifier, req.Headers, req.Body, req.ReceivedAt, a.cfg.WebhookSecret)
		if err != nil {
			return Outcome{Verification: vr}, err
		}
		var hook flutterwaveWebhook
		if err := json.Unmarshal(req.Body, &hook); err != nil {
			return Outcome{Verification: vr}, fmt.Errorf("%w: flutterwave webhook: %v", domainerrs.ErrMalformedPayload, err)
		}
		vr.EventType = hook.Event
		if hook.Event != flutterwaveChargeCompleted {
			return ignored("unhandled event type "+hook.Event, vr), nil
		}
		if hook.Data.ID != 0 {
			claim.transactionID = strconv.FormatInt(hook.Data.ID, 10)
		}
		claim.txRef = strings.TrimSpace(hook.Data.TxRef)
		claim.currency = strings.ToUpper(strings.TrimSpace(hook.Data.Currency))
		claim.amount = ToMinorUnits(float64(hook.Data.Amount), claim.currency)
		claim.hasAmount = true
	}
	if claim.transactionID == "" {
		return Outcome{Verification: vr}, fmt.Errorf("%w: flutterwave notification without transaction id", domainerrs.ErrMalformedPayload)
	}
	vr.ProviderEventID = claim.transactionID

	verified, err := a.checker.CheckStatus(ctx, claim.transactionID)
	if err != nil {
		return Outcome{Verification: vr}, fmt.Errorf("flutterwave verify %s: %w", claim.transactionID, err)
	}
	if !verified.Succeeded {
		return ignored("provider status "+verified.Status, vr), nil
	}
	if claim.txRef != "" && verified.Reference != claim.txRef {
		return ignored("tx_ref mismatch", vr), nil
	}
	if claim.hasAmount && (verified.Amount != claim.amount || verified.Currency != claim.currency) {
		a.log.Warn("Flutterwave amount mismatch",
			"transaction_id", claim.transactionID,
			"claimed_amount", claim.amount,
			"verified_amount", verified.Amount,
			"claimed_currency", claim.currency,
			"verified_currency", verified.Currency,
		)
		return ignored("amount or currency mismatch", vr), nil
	}

	userID, target, err := ResolveTarget(verified.Metadata)
	if err != nil {
		return Outcome{Verification: vr}, err
	}
	meta := metadataAny(verified.Metadata)
	meta["transaction_id"] = claim.transactionID
	return Outcome{
		Verification: vr,
		Event: &Event{
			Provider:    ProviderFlutterwave,
			ProviderRef: verified.Reference,
			UserID:      userID,
			Amount:      verified.Amount,
			Currency:    verified.Currency,
			Target:      target,
			Metadata:    meta,
		},
	}, nil
}

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Amount   flexAmount      `json:"amount"`
		Currency string          `json:"currency"`
		Status   string          `json:"status"`
		Meta     json.RawMessage `json:"meta"`
	} `json:"data"`
}

// CheckStatus verifies a transaction by its numeric id. The returned
// Reference is the merchant tx_ref.
func (a *FlutterwaveAdapter) CheckStatus(ctx context.Context, transactionID string) (VerifiedPayment, error) {
	var out flutterwaveVerifyResponse
	if err := a.api.doJSON(ctx, http.MethodGet, "/v3/transactions/"+transactionID+"/verify", nil, &out); err != nil {
		return VerifiedPayment{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(out.Data.Currency))
	status := strings.ToLower(strings.TrimSpace(out.Data.Status))
	return VerifiedPayment{
		Reference: strings.TrimSpace(out.Data.TxRef),
		Status:    status,
		Succeeded: out.Status == "success" && status == flutterwaveSuccessful,
		Amount:    ToMinorUnits(float64(out.Data.Amount), currency),
		Currency:  currency,
		Metadata:  stringMap(out.Data.Meta),
	}, nil
}

type flutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (a *FlutterwaveAdapter) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if strings.TrimSpace(a.cfg.SecretKey) == "" {
		return CheckoutSession{}, fmt.Errorf("flutterwave: missing FLUTTERWAVE_SECRET_KEY")
	}
	body := map[string]any{
		"tx_ref":       req.Reference,
		"amount":       FromMinorUnits(req.Amount, req.Currency),
		"currency":     req.Currency,
		"redirect_url": req.ReturnURL,
		"customer":     map[string]string{"email": req.Email},
		"meta":         TargetMetadata(req.UserID, req.Target),
		"customizations": map[string]string{
			"title": req.Description,
		},
	}
	var out flutterwavePaymentResponse
	if err := a.api.doJSON(ctx, http.MethodPost, "/v3/payments", body, &out); err != nil {
		return CheckoutSession{}, fmt.Errorf("flutterwave checkout: %w", err)
	}
	if out.Status != "success" || out.Data.Link == "" {
		return CheckoutSession{}, fmt.Errorf("flutterwave checkout: %s", out.Message)
	}
	return CheckoutSession{Provider: ProviderFlutterwave, Reference: req.Reference, CheckoutURL: out.Data.Link}, nil
}
