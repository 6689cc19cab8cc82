package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/platform/envutil"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

// Catalog is the non-secret business configuration loaded from
// ENGINE_CATALOG_FILE.
type Catalog struct {
	Packs      map[user.Pack]services.PackPrice `yaml:"packs"`
	Issuer     services.ReceiptIssuer           `yaml:"issuer"`
	Instructor string                           `yaml:"instructor"`
	Quiz       QuizThresholds                   `yaml:"quiz"`
}

type QuizThresholds struct {
	AttemptThreshold float64 `yaml:"attempt_threshold"`
	LessonThreshold  float64 `yaml:"lesson_threshold"`
}

type Config struct {
	ServiceName    string
	Environment    string
	Port           string
	JWTSecretKey   string
	JWTIssuer      string
	JWTAudience    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration

	PublicBaseURL string
	SuccessURL    string
	CancelURL     string
	ContentURLTTL time.Duration

	ReplayCacheTTL      time.Duration
	NotifyQueueKey      string
	NotifyWorkers       int
	NotifyQueueCapacity int

	MetricsAddr string

	Catalog Catalog
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		ServiceName:    envutil.String("SERVICE_NAME", "entitlement-engine"),
		Environment:    envutil.String("APP_ENV", "development"),
		Port:           envutil.String("PORT", "8080"),
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:      envutil.String("JWT_ISSUER", ""),
		JWTAudience:    envutil.String("JWT_AUDIENCE", ""),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RequestTimeout: envutil.Duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownGrace:  envutil.Duration("HTTP_SHUTDOWN_GRACE", 15*time.Second),

		PublicBaseURL: strings.TrimRight(envutil.String("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SuccessURL:    envutil.String("CHECKOUT_SUCCESS_URL", ""),
		CancelURL:     envutil.String("CHECKOUT_CANCEL_URL", ""),
		ContentURLTTL: envutil.Duration("CONTENT_URL_TTL", services.DefaultContentURLTTL),

		ReplayCacheTTL:      envutil.Duration("REPLAY_CACHE_TTL", 72*time.Hour),
		NotifyQueueKey:      envutil.String("NOTIFY_QUEUE_KEY", "entitlements:notify"),
		NotifyWorkers:       envutil.Int("NOTIFY_WORKERS", 4),
		NotifyQueueCapacity: envutil.Int("NOTIFY_QUEUE_CAPACITY", 1024),

		MetricsAddr: envutil.String("METRICS_ADDR", ""),
	}
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET_KEY")
	}

	cat, err := LoadCatalog(envutil.String("ENGINE_CATALOG_FILE", ""))
	if err != nil {
		return Config{}, err
	}
	// Env wins over the catalog file for the pass thresholds.
	cat.Quiz.AttemptThreshold = envutil.Float("QUIZ_PASS_THRESHOLD", cat.Quiz.AttemptThreshold)
	cat.Quiz.LessonThreshold = envutil.Float("LESSON_QUIZ_PASS_THRESHOLD", cat.Quiz.LessonThreshold)
	cfg.Catalog = cat
	log.Info("Catalog loaded", "packs", len(cat.Packs), "issuer", cat.Issuer.Name)
	return cfg, nil
}

// LoadCatalog reads path, or returns the built-in catalog when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	cat := defaultCatalog()
	path = strings.TrimSpace(path)
	if path == "" {
		return cat, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var fromFile Catalog
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for pack, price := range fromFile.Packs {
		if !pack.Valid() {
			return Catalog{}, fmt.Errorf("catalog %s: unknown pack %q", path, pack)
		}
		if price.Amount <= 0 || strings.TrimSpace(price.Currency) == "" {
			return Catalog{}, fmt.Errorf("catalog %s: pack %q needs a positive amount and a currency", path, pack)
		}
		price.Currency = strings.ToUpper(strings.TrimSpace(price.Currency))
		cat.Packs[pack] = price
	}
	if fromFile.Issuer.Name != "" {
		cat.Issuer = fromFile.Issuer
	}
	if fromFile.Instructor != "" {
		cat.Instructor = fromFile.Instructor
	}
	if fromFile.Quiz.AttemptThreshold > 0 {
		cat.Quiz.AttemptThreshold = fromFile.Quiz.AttemptThreshold
	}
	if fromFile.Quiz.LessonThreshold > 0 {
		cat.Quiz.LessonThreshold = fromFile.Quiz.LessonThreshold
	}
	return cat, nil
}

func defaultCatalog() Catalog {
	cat := Catalog{
		Packs: map[user.Pack]services.PackPrice{
			user.PackEssentiel: {Amount: 25000, Currency: "XOF"},
			user.PackExpert:    {Amount: 45000, Currency: "XOF"},
			user.PackMaster:    {Amount: 80000, Currency: "XOF"},
		},
		Issuer: services.ReceiptIssuer{Name: "Entitlement Engine"},
	}
	q := services.DefaultQuizConfig()
	cat.Quiz = QuizThresholds{AttemptThreshold: q.AttemptThreshold, LessonThreshold: q.LessonThreshold}
	return cat
}

func (c Catalog) QuizConfig() services.QuizConfig {
	return services.QuizConfig{AttemptThreshold: c.Quiz.AttemptThreshold, LessonThreshold: c.Quiz.LessonThreshold}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
