package payments

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	// KindWebhook is a server-to-server notification.
	KindWebhook RequestKind = "webhook"
	// KindReturn is the browser redirect after checkout. Its claims are never trusted as-is.
	KindReturn RequestKind = "return"
)

type InboundRequest struct {
	Kind       RequestKind
	Headers    http.Header
	Body       []byte
	Query      url.Values
	ReceivedAt time.Time
}

// Outcome holds either an Event to reconcile or the reason it was ignored.
type Outcome struct {
	Event        *Event
	Ignored      string
	Verification VerificationResult
}

func ignored(reason string, v VerificationResult) Outcome {
	return Outcome{Ignored: reason, Verification: v}
}

// Adapter turns one provider's notifications into canonical events.
// Protocol failures wrap ErrMalformedPayload; bad signatures wrap
// ErrSignatureMismatch; unmappable targets wrap ErrUnknownTargetSchema.
type Adapter interface {
	Provider() string
	Parse(ctx context.Context, req InboundRequest) (Outcome, error)
}

type CheckoutRequest struct {
	Reference   string
	UserID      uuid.UUID
	Email       string
	Target      Target
	Amount      int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

type CheckoutSession struct {
	Provider    string `json:"provider"`
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

type CheckoutGateway interface {
	Provider() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}
