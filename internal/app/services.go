package app

import (
	"gorm.io/gorm"

	redisclient "github.com/yungbote/entitlement-engine/internal/clients/redis"
	"github.com/yungbote/entitlement-engine/internal/notify"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type Services struct {
	Auth          services.AuthService
	Receipt       services.ReceiptService
	Notification  services.NotificationService
	Reconcile     services.ReconcileService
	Checkout      services.CheckoutService
	Progress      services.ProgressService
	Access        services.AccessService
	Quiz          services.QuizService
	Certificate   services.CertificateService
	Content       services.ContentService
	NotifyQueue   notify.Queue
	NotifyWorkers *notify.Dispatcher
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) Services {
	log.Info("Wiring services...")

	var queue notify.Queue
	if clients.Redis != nil {
		queue = redisclient.NewNotifyQueue(log, clients.Redis, cfg.NotifyQueueKey)
	} else {
		queue = notify.NewMemoryQueue(cfg.NotifyQueueCapacity)
	}

	var replay services.ReplayCache
	if clients.Redis != nil {
		replay = redisclient.NewReplayCache(log, clients.Redis, cfg.ReplayCacheTTL)
	}

	authService := services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer, cfg.JWTAudience)
	receiptService := services.NewReceiptService(
		log,
		repos.Ledger,
		repos.User,
		repos.Profile,
		repos.Project,
		clients.Bucket,
		cfg.Catalog.Issuer,
	)
	notificationService := services.NewNotificationService(
		log,
		queue,
		repos.Notification,
		repos.Profile,
		repos.User,
		clients.Mailer,
		clients.MailFrom,
	)
	reconcileService := services.NewReconcileService(
		db, log,
		repos.Ledger,
		repos.Project,
		repos.Profile,
		receiptService,
		notificationService,
		replay,
	)
	checkoutService := services.NewCheckoutService(log, clients.Payments, repos.Project, repos.User, services.CheckoutConfig{
		Packs:         cfg.Catalog.Packs,
		PublicBaseURL: cfg.PublicBaseURL,
		SuccessURL:    cfg.SuccessURL,
		CancelURL:     cfg.CancelURL,
	})

	accessService := services.NewAccessService(log, repos.Profile, repos.Course, repos.Lesson, repos.LessonProgress)
	progressService := services.NewProgressService(log, repos.Course, repos.Lesson, repos.LessonProgress, accessService)
	quizService := services.NewQuizService(
		db, log,
		repos.Lesson,
		repos.Question,
		repos.QuizAttempt,
		repos.LessonProgress,
		progressService,
		accessService,
		cfg.Catalog.QuizConfig(),
	)
	certificateService := services.NewCertificateService(
		log,
		repos.Certificate,
		repos.Course,
		repos.Lesson,
		repos.Question,
		repos.LessonProgress,
		repos.Profile,
		repos.User,
		accessService,
		clients.Bucket,
		cfg.Catalog.Instructor,
	)
	contentService := services.NewContentService(log, accessService, progressService, clients.Bucket, cfg.ContentURLTTL)

	dispatcher := notify.NewDispatcher(log, queue, notificationService, notify.DispatcherConfig{
		Workers: cfg.NotifyWorkers,
	})

	return Services{
		Auth:          authService,
		Receipt:       receiptService,
		Notification:  notificationService,
		Reconcile:     reconcileService,
		Checkout:      checkoutService,
		Progress:      progressService,
		Access:        accessService,
		Quiz:          quizService,
		Certificate:   certificateService,
		Content:       contentService,
		NotifyQueue:   queue,
		NotifyWorkers: dispatcher,
	}
}
