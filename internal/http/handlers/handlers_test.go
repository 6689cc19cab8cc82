package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/payments"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/ctxutil"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type stubAdapter struct {
	outcome payments.Outcome
	err     error
	got     payments.InboundRequest
}

func (a *stubAdapter) Provider() string { return "cinetpay" }

func (a *stubAdapter) Parse(_ context.Context, req payments.InboundRequest) (payments.Outcome, error) {
	a.got = req
	return a.outcome, a.err
}

type stubAdapters map[string]payments.Adapter

func (s stubAdapters) Adapter(provider string) (payments.Adapter, error) {
	a, ok := s[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s", domainerrs.ErrNotFound, provider)
	}
	return a, nil
}

type stubReconcile struct {
	res   *services.ReconcileResult
	err   error
	calls int
}

func (s *stubReconcile) Reconcile(_ context.Context, _ payments.Event) (*services.ReconcileResult, error) {
	s.calls++
	return s.res, s.err
}

func formationEvent() *payments.Event {
	return &payments.Event{
		Provider:    "cinetpay",
		ProviderRef: "tx-1",
		UserID:      uuid.New(),
		Amount:      25000,
		Currency:    "XOF",
		Target:      payments.FormationTarget{Pack: user.PackExpert},
	}
}

func webhookRouter(h *WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/:provider", h.Receive)
	r.GET("/api/payments/:provider/return", h.Return)
	return r
}

func postWebhook(r *gin.Engine, provider, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+provider, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Status
}

func TestWebhookReceive(t *testing.T) {
	txID := uuid.New()

	t.Run("processed", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{res: &services.ReconcileResult{Status: services.ReconcileProcessed, TransactionID: txID}}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "cpm_trans_id=tx-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "processed", decodeStatus(t, rec))
		assert.Contains(t, rec.Body.String(), txID.String())
		assert.Equal(t, "cpm_trans_id=tx-1", string(adapter.got.Body))
		assert.Equal(t, payments.KindWebhook, adapter.got.Kind)
	})

	t.Run("duplicate", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{res: &services.ReconcileResult{Status: services.ReconcileDuplicate}}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "duplicate", decodeStatus(t, rec))
		assert.NotContains(t, rec.Body.String(), "transaction_id")
	})

	t.Run("signature mismatch is acknowledged", func(t *testing.T) {
		adapter := &stubAdapter{err: fmt.Errorf("%w: bad hmac", domainerrs.ErrSignatureMismatch)}
		rc := &stubReconcile{}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "x=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decodeStatus(t, rec))
		assert.Zero(t, rc.calls)
	})

	t.Run("ignored outcome", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Ignored: "provider status REFUSED"}}
		rc := &stubReconcile{}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "x=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decodeStatus(t, rec))
		assert.Zero(t, rc.calls)
	})

	t.Run("unknown target from reconcile is acknowledged", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{err: fmt.Errorf("%w: no target", domainerrs.ErrUnknownTargetSchema)}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "x=1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decodeStatus(t, rec))
	})

	t.Run("payment for a missing project is acknowledged", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{err: fmt.Errorf("%w: project %s does not exist", domainerrs.ErrUnknownTargetSchema, uuid.New())}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "x=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decodeStatus(t, rec))
		assert.Equal(t, 1, rc.calls)
	})

	t.Run("malformed payload", func(t *testing.T) {
		adapter := &stubAdapter{err: fmt.Errorf("%w: not json", domainerrs.ErrMalformedPayload)}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, &stubReconcile{}, "", ""))

		rec := postWebhook(r, "cinetpay", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("body over limit", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", strings.Repeat("a", maxWebhookBody+1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, rc.calls)
	})

	t.Run("storage failure asks for redelivery", func(t *testing.T) {
		adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
		rc := &stubReconcile{err: fmt.Errorf("ledger insert: %w", context.DeadlineExceeded)}
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "", ""))

		rec := postWebhook(r, "cinetpay", "x=1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "deadline")
	})

	t.Run("unknown provider", func(t *testing.T) {
		r := webhookRouter(NewWebhookHandler(logger.Nop(), stubAdapters{}, &stubReconcile{}, "", ""))
		rec := postWebhook(r, "paypal", "x=1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWebhookReturnRedirects(t *testing.T) {
	adapter := &stubAdapter{outcome: payments.Outcome{Event: formationEvent()}}
	rc := &stubReconcile{res: &services.ReconcileResult{Status: services.ReconcileProcessed, TransactionID: uuid.New()}}
	h := NewWebhookHandler(logger.Nop(), stubAdapters{"cinetpay": adapter}, rc, "https://app.example.com/paid", "https://app.example.com/failed")
	r := webhookRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/cinetpay/return?transaction_id=tx-1", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/paid?payment_status=processed", rec.Header().Get("Location"))
	assert.Equal(t, payments.KindReturn, adapter.got.Kind)
	assert.Equal(t, "tx-1", adapter.got.Query.Get("transaction_id"))

	adapter.outcome = payments.Outcome{Ignored: "provider status PENDING"}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/cinetpay/return?transaction_id=tx-2", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/failed?payment_status=ignored", rec.Header().Get("Location"))
}

type stubCertificates struct {
	err error
}

func (s stubCertificates) IssueCertificate(_ context.Context, _, courseID uuid.UUID) (*services.CertificateData, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.CertificateData{CertificateNumber: "CERT-2026-ABCDEF12", CourseID: courseID}, nil
}

type stubAccess struct {
	decision policy.CourseDecision
}

func (s stubAccess) CheckCourseAccess(_ context.Context, _, courseID uuid.UUID) (*services.AccessDecision, error) {
	return &services.AccessDecision{CourseID: courseID, CourseDecision: s.decision}, nil
}

// withCaller stands in for the auth middleware.
func withCaller(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func TestCertificateIssue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courseID := uuid.New()

	t.Run("insufficient grade carries details", func(t *testing.T) {
		r := gin.New()
		h := NewCertificateHandler(stubCertificates{err: &services.InsufficientGradeError{Grade: 9.5, Threshold: 10}})
		r.POST("/api/courses/:id/certificate", withCaller(uuid.New()), h.Issue)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/courses/"+courseID.String()+"/certificate", nil))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var env struct {
			Error struct {
				Code string `json:"code"`
				Details struct {
					Grade     float64 `json:"grade"`
					Threshold float64 `json:"threshold"`
				} `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "insufficient_grade", env.Error.Code)
		assert.Equal(t, 9.5, env.Error.Details.Grade)
		assert.Equal(t, 10.0, env.Error.Details.Threshold)
	})

	t.Run("course access denial carries the decision", func(t *testing.T) {
		denied := &services.AccessDeniedError{Decision: policy.CourseDecision{
			Decision: policy.Decision{Allowed: false, Reason: policy.ReasonExpired},
			Gate:     policy.GatePolicy,
		}}
		r := gin.New()
		r.POST("/api/courses/:id/certificate", withCaller(uuid.New()), NewCertificateHandler(stubCertificates{err: denied}).Issue)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/courses/"+courseID.String()+"/certificate", nil))
		require.Equal(t, http.StatusForbidden, rec.Code)

		var env struct {
			Error struct {
				Code    string `json:"code"`
				Details struct {
					Reason string `json:"reason"`
					Gate   string `json:"gate"`
				} `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "permission_denied", env.Error.Code)
		assert.Equal(t, "expired", env.Error.Details.Reason)
		assert.Equal(t, "policy", env.Error.Details.Gate)
	})

	t.Run("anonymous", func(t *testing.T) {
		r := gin.New()
		r.POST("/api/courses/:id/certificate", NewCertificateHandler(stubCertificates{}).Issue)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/courses/"+courseID.String()+"/certificate", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		r := gin.New()
		r.POST("/api/courses/:id/certificate", withCaller(uuid.New()), NewCertificateHandler(stubCertificates{}).Issue)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/courses/not-a-uuid/certificate", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_course_id")
	})
}

func TestAccessDenialIsNotAnError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	denied := policy.CourseDecision{
		Decision: policy.Decision{Allowed: false, Reason: policy.ReasonLockedPack},
		Gate:     policy.GatePolicy,
	}
	r := gin.New()
	r.GET("/api/courses/:id/access", withCaller(uuid.New()), NewAccessHandler(stubAccess{decision: denied}).CheckCourse)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses/"+uuid.NewString()+"/access", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
		Gate    string `json:"gate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Allowed)
	assert.Equal(t, "locked_pack", body.Reason)
	assert.Equal(t, "policy", body.Gate)
}
