package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/entitlement-engine/internal/http/handlers"
	httpMW "github.com/yungbote/entitlement-engine/internal/http/middleware"
	"github.com/yungbote/entitlement-engine/internal/observability"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Metrics        *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	WebhookHandler      *httpH.WebhookHandler
	CheckoutHandler     *httpH.CheckoutHandler
	ReceiptHandler      *httpH.ReceiptHandler
	AccessHandler       *httpH.AccessHandler
	ProgressHandler     *httpH.ProgressHandler
	QuizHandler         *httpH.QuizHandler
	CertificateHandler  *httpH.CertificateHandler
	ContentHandler      *httpH.ContentHandler
	NotificationHandler *httpH.NotificationHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext(cfg.RequestTimeout))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Payment providers authenticate with signatures, not bearer tokens.
		if cfg.WebhookHandler != nil {
			api.POST("/webhooks/:provider", cfg.WebhookHandler.Receive)
			api.GET("/payments/:provider/return", cfg.WebhookHandler.Return)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Payments
		if cfg.CheckoutHandler != nil {
			protected.POST("/checkout", cfg.CheckoutHandler.Initiate)
		}
		if cfg.ReceiptHandler != nil {
			protected.GET("/transactions/:id/receipt", cfg.ReceiptHandler.GetReceipt)
		}

		// Courses
		if cfg.AccessHandler != nil {
			protected.GET("/courses/:id/access", cfg.AccessHandler.CheckCourse)
		}
		if cfg.ProgressHandler != nil {
			protected.GET("/courses/:id/lessons", cfg.ProgressHandler.ListLessons)
			protected.POST("/lessons/:id/progress", cfg.ProgressHandler.Heartbeat)
			protected.POST("/lessons/:id/complete", cfg.ProgressHandler.Complete)
		}
		if cfg.CertificateHandler != nil {
			protected.POST("/courses/:id/certificate", cfg.CertificateHandler.Issue)
		}
		if cfg.ContentHandler != nil {
			protected.GET("/lessons/:id/content-url", cfg.ContentHandler.SignedURL)
		}

		// Quizzes
		if cfg.QuizHandler != nil {
			protected.POST("/lessons/:id/quiz", cfg.QuizHandler.Start)
			protected.POST("/lessons/:id/quiz/submit", cfg.QuizHandler.SubmitLesson)
			protected.POST("/quiz-attempts/:id/submit", cfg.QuizHandler.Submit)
		}

		// Notifications
		if cfg.NotificationHandler != nil {
			protected.GET("/notifications", cfg.NotificationHandler.List)
			protected.POST("/notifications/read", cfg.NotificationHandler.MarkRead)
		}
	}

	return r
}
