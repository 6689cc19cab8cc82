package payments

import "context"

// VerifiedPayment is the provider's server-side answer for one payment.
type VerifiedPayment struct {
	Reference string
	Status    string
	Succeeded bool
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

// StatusChecker asks a provider for the authoritative state of a payment.
// Callback providers only emit events backed by a successful check.
type StatusChecker interface {
	CheckStatus(ctx context.Context, ref string) (VerifiedPayment, error)
}
