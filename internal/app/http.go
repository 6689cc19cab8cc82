package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/http"
	httpH "github.com/yungbote/entitlement-engine/internal/http/handlers"
	httpMW "github.com/yungbote/entitlement-engine/internal/http/middleware"
	"github.com/yungbote/entitlement-engine/internal/observability"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Webhook      *httpH.WebhookHandler
	Checkout     *httpH.CheckoutHandler
	Receipt      *httpH.ReceiptHandler
	Access       *httpH.AccessHandler
	Progress     *httpH.ProgressHandler
	Quiz         *httpH.QuizHandler
	Certificate  *httpH.CertificateHandler
	Content      *httpH.ContentHandler
	Notification *httpH.NotificationHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Webhook:      httpH.NewWebhookHandler(log, clients.Payments, services.Reconcile, cfg.SuccessURL, cfg.CancelURL),
		Checkout:     httpH.NewCheckoutHandler(log, services.Checkout),
		Receipt:      httpH.NewReceiptHandler(services.Receipt),
		Access:       httpH.NewAccessHandler(services.Access),
		Progress:     httpH.NewProgressHandler(log, services.Progress),
		Quiz:         httpH.NewQuizHandler(log, services.Quiz),
		Certificate:  httpH.NewCertificateHandler(services.Certificate),
		Content:      httpH.NewContentHandler(services.Content),
		Notification: httpH.NewNotificationHandler(services.Notification),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                 log,
		ServiceName:         cfg.ServiceName,
		AllowedOrigins:      cfg.AllowedOrigins,
		RequestTimeout:      cfg.RequestTimeout,
		Metrics:             metrics,
		AuthMiddleware:      middleware.Auth,
		HealthHandler:       handlers.Health,
		WebhookHandler:      handlers.Webhook,
		CheckoutHandler:     handlers.Checkout,
		ReceiptHandler:      handlers.Receipt,
		AccessHandler:       handlers.Access,
		ProgressHandler:     handlers.Progress,
		QuizHandler:         handlers.Quiz,
		CertificateHandler:  handlers.Certificate,
		ContentHandler:      handlers.Content,
		NotificationHandler: handlers.Notification,
	})
}
