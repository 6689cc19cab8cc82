package payments

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
)

const SchemeUnverified = "unverified"

type VerificationResult struct {
	Valid           bool           `json:"valid"`
	Scheme          string         `json:"scheme"`
	Details         map[string]any `json:"details"`
	ProviderEventID string         `json:"provider_event_id,omitempty"`
	EventType       string         `json:"event_type,omitempty"`
}

type Verifier interface {
	Provider() string
	Verify(headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error)
}

// Authenticate runs v unless secret is empty. A configured secret with an
// absent or wrong signature yields ErrSignatureMismatch.
func Authenticate(v Verifier, headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{Valid: true, Scheme: SchemeUnverified}, nil
	}
	res, err := v.Verify(headers, rawBody, receivedAt, secret)
	if err != nil {
		return res, err
	}
	if !res.Valid {
		return res, fmt.Errorf("%w: %s", domainerrs.ErrSignatureMismatch, res.Scheme)
	}
	return res, nil
}
