package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const hmacSHA256Scheme = "hmac_sha256"

type SignatureEncoding string

const (
	EncodingHex    SignatureEncoding = "hex"
	EncodingBase64 SignatureEncoding = "base64"
)

type hmacVerifier struct {
	provider string
	header   string
	encoding SignatureEncoding
}

// NewHMACVerifier checks an HMAC-SHA256 of the raw body carried in header.
// A "sha256=" prefix on the header value is accepted.
func NewHMACVerifier(provider, header string, encoding SignatureEncoding) Verifier {
	if encoding == "" {
		encoding = EncodingHex
	}
	return &hmacVerifier{
		provider: strings.TrimSpace(provider),
		header:   strings.TrimSpace(header),
		encoding: encoding,
	}
}

func (v *hmacVerifier) Provider() string { return v.provider }

func (v *hmacVerifier) Verify(headers http.Header, rawBody []byte, _ time.Time, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{}, fmt.Errorf("webhook verifier secret is empty")
	}
	res := VerificationResult{
		Scheme: hmacSHA256Scheme,
		Details: map[string]any{
			"signature_header_present": false,
			"signature_decodable":      false,
			"used_header":              v.header,
		},
	}

	raw := strings.TrimSpace(headers.Get(v.header))
	if raw == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true
	raw = strings.TrimPrefix(raw, "sha256=")

	var (
		provided []byte
		err      error
	)
	switch v.encoding {
	case EncodingBase64:
		provided, err = base64.StdEncoding.DecodeString(raw)
	default:
		provided, err = hex.DecodeString(raw)
	}
	if err != nil {
		return res, nil
	}
	res.Details["signature_decodable"] = true

	res.Valid = hmac.Equal(hmacSHA256(secret, rawBody), provided)
	return res, nil
}

func hmacSHA256(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignHMAC encodes the HMAC-SHA256 of body the way NewHMACVerifier expects.
func SignHMAC(secret string, body []byte, encoding SignatureEncoding) string {
	sum := hmacSHA256(secret, body)
	if encoding == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}
