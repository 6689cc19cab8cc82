package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/yungbote/entitlement-engine/internal/clients/redis"
	"github.com/yungbote/entitlement-engine/internal/payments"
	"github.com/yungbote/entitlement-engine/internal/platform/gcp"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/platform/sendgrid"
)

type Clients struct {
	Redis    *goredis.Client
	Bucket   gcp.BucketService
	Mailer   sendgrid.Client
	MailFrom sendgrid.EmailAddress
	Payments *payments.Registry
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis is optional: without it the replay cache is skipped and
	// notifications queue in memory.
	redisCfg := redisclient.ConfigFromEnv()
	if redisCfg.Addr != "" {
		rdb, err := redisclient.NewClient(log, redisCfg)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	bucket, err := resolveBucketService(log)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Bucket = bucket

	// SendGrid is optional: without it notifications are in-app only.
	mailCfg := sendgrid.ConfigFromEnv()
	if mailCfg.APIKey != "" {
		mailer, err := sendgrid.New(log, mailCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init sendgrid: %w", err)
		}
		out.Mailer = mailer
		out.MailFrom = sendgrid.EmailAddress{Email: mailCfg.DefaultFromEmail, Name: mailCfg.DefaultFromName}
	}

	registry, err := payments.NewRegistryFromConfig(log, payments.ConfigFromEnv())
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init payment providers: %w", err)
	}
	out.Payments = registry
	log.Info("Payment providers enabled", "providers", strings.Join(registry.Providers(), ","))

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
