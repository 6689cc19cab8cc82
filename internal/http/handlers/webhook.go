package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/observability"
	"github.com/yungbote/entitlement-engine/internal/payments"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

const maxWebhookBody = 1 << 20

type AdapterResolver interface {
	Adapter(provider string) (payments.Adapter, error)
}

type WebhookHandler struct {
	log        *logger.Logger
	adapters   AdapterResolver
	reconcile  services.ReconcileService
	successURL string
	failureURL string
	now        func() time.Time
}

// NewWebhookHandler builds the inbound payment endpoints. successURL and
// failureURL are where the browser lands after a return callback; when empty
// the callback answers with JSON.
func NewWebhookHandler(
	log *logger.Logger,
	adapters AdapterResolver,
	reconcile services.ReconcileService,
	successURL string,
	failureURL string,
) *WebhookHandler {
	return &WebhookHandler{
		log:        log.With("handler", "WebhookHandler"),
		adapters:   adapters,
		reconcile:  reconcile,
		successURL: strings.TrimSpace(successURL),
		failureURL: strings.TrimSpace(failureURL),
		now:        time.Now,
	}
}

type webhookOutcome struct {
	status        int
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	ReceiptRef    string `json:"receipt_ref,omitempty"`
	err           error
}

// POST /api/webhooks/:provider
func (h *WebhookHandler) Receive(c *gin.Context) {
	out := h.process(c, payments.KindWebhook)
	if out.err != nil {
		response.RespondError(c, out.status, out.Status, out.err)
		return
	}
	c.JSON(out.status, out)
}

// GET /api/payments/:provider/return
func (h *WebhookHandler) Return(c *gin.Context) {
	out := h.process(c, payments.KindReturn)
	target := h.successURL
	if out.Status != string(services.ReconcileProcessed) && out.Status != string(services.ReconcileDuplicate) {
		target = h.failureURL
	}
	if target == "" {
		if out.err != nil {
			response.RespondError(c, out.status, out.Status, out.err)
			return
		}
		c.JSON(out.status, out)
		return
	}
	c.Redirect(http.StatusFound, withQuery(target, "payment_status", out.Status))
}

func (h *WebhookHandler) process(c *gin.Context, kind payments.RequestKind) webhookOutcome {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	out := h.handle(c, provider, kind)
	observability.Current().IncWebhook(provider, string(kind), out.Status)
	return out
}

func (h *WebhookHandler) handle(c *gin.Context, provider string, kind payments.RequestKind) webhookOutcome {
	adapter, err := h.adapters.Adapter(provider)
	if err != nil {
		return webhookOutcome{status: http.StatusNotFound, Status: "not_found", err: err}
	}

	var body []byte
	if kind == payments.KindWebhook {
		body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			h.log.Warn("Webhook body rejected", "provider", provider, "error", err)
			return webhookOutcome{status: http.StatusBadRequest, Status: "rejected", err: err}
		}
	}

	ctx := c.Request.Context()
	res, err := adapter.Parse(ctx, payments.InboundRequest{
		Kind:       kind,
		Headers:    c.Request.Header,
		Body:       body,
		Query:      c.Request.URL.Query(),
		ReceivedAt: h.now(),
	})
	if err != nil {
		return h.failed(provider, err)
	}
	if res.Event == nil {
		h.log.Info("Payment notification ignored", "provider", provider, "kind", kind, "reason", res.Ignored)
		return webhookOutcome{status: http.StatusOK, Status: "ignored", Reason: res.Ignored}
	}

	result, err := h.reconcile.Reconcile(ctx, *res.Event)
	if err != nil {
		return h.failed(provider, err)
	}
	out := webhookOutcome{status: http.StatusOK, Status: string(result.Status), ReceiptRef: result.ReceiptRef}
	if result.TransactionID != uuid.Nil {
		out.TransactionID = result.TransactionID.String()
	}
	return out
}

// failed acknowledges what a retry cannot fix and surfaces the rest so the
// provider redelivers.
func (h *WebhookHandler) failed(provider string, err error) webhookOutcome {
	switch {
	case errors.Is(err, domainerrs.ErrSignatureMismatch):
		h.log.Warn("Payment notification signature mismatch", "provider", provider, "error", err)
		return webhookOutcome{status: http.StatusOK, Status: "ignored", Reason: "signature mismatch"}
	case errors.Is(err, domainerrs.ErrUnknownTargetSchema):
		h.log.Warn("Payment notification with unknown target", "provider", provider, "error", err)
		return webhookOutcome{status: http.StatusOK, Status: "ignored", Reason: "unknown target"}
	case errors.Is(err, domainerrs.ErrMalformedPayload), errors.Is(err, domainerrs.ErrInvalidArgument):
		h.log.Warn("Malformed payment notification", "provider", provider, "error", err)
		return webhookOutcome{status: http.StatusBadRequest, Status: "rejected", err: err}
	default:
		h.log.Error("Payment notification failed", "provider", provider, "error", err)
		return webhookOutcome{status: http.StatusInternalServerError, Status: "error", err: errors.New("internal error")}
	}
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
