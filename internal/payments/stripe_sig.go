package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	stripeSignatureHeader  = "Stripe-Signature"
	stripeV1Scheme         = "stripe_v1"
	defaultStripeTolerance = 300
)

type stripeV1Verifier struct {
	provider         string
	toleranceSeconds int64
}

func NewStripeV1Verifier(provider string, tolerance time.Duration) Verifier {
	secs := int64(tolerance / time.Second)
	if secs <= 0 {
		secs = defaultStripeTolerance
	}
	return &stripeV1Verifier{provider: strings.TrimSpace(provider), toleranceSeconds: secs}
}

func (v *stripeV1Verifier) Provider() string { return v.provider }

func (v *stripeV1Verifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{}, fmt.Errorf("webhook verifier secret is empty")
	}
	res := VerificationResult{
		Scheme: stripeV1Scheme,
		Details: map[string]any{
			"signature_header_present": false,
			"timestamp_within_window":  false,
			"tolerance_seconds":        v.toleranceSeconds,
		},
	}

	header := strings.TrimSpace(headers.Get(stripeSignatureHeader))
	if header == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true

	var (
		timestamp string
		sigs      [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			if b, err := hex.DecodeString(kv[1]); err == nil {
				sigs = append(sigs, b)
			}
		}
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || len(sigs) == 0 {
		return res, nil
	}

	skew := receivedAt.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > v.toleranceSeconds {
		return res, nil
	}
	res.Details["timestamp_within_window"] = true

	expected := stripeV1Signature(secret, timestamp, rawBody)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			res.Valid = true
			break
		}
	}
	return res, nil
}

func stripeV1Signature(secret, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignStripeV1 builds a Stripe-Signature header value for body at ts.
func SignStripeV1(secret string, ts time.Time, body []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + hex.EncodeToString(stripeV1Signature(secret, t, body))
}
