package payments

import (
	"fmt"
	"sort"
	"strings"
	"time"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/envutil"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type Config struct {
	Enabled     []string
	Stripe      StripeConfig
	CinetPay    CinetPayConfig
	Flutterwave FlutterwaveConfig
}

func ConfigFromEnv() Config {
	timeout := envutil.Duration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second)
	retries := envutil.Int("PAYMENT_PROVIDER_MAX_RETRIES", 3)

	var enabled []string
	for _, p := range strings.Split(envutil.String("PAYMENT_PROVIDERS", "stripe,cinetpay,flutterwave"), ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			enabled = append(enabled, p)
		}
	}

	return Config{
		Enabled: enabled,
		Stripe: StripeConfig{
			SecretKey:     envutil.String("STRIPE_SECRET_KEY", ""),
			WebhookSecret: envutil.String("STRIPE_WEBHOOK_SECRET", ""),
			BaseURL:       envutil.String("STRIPE_BASE_URL", ""),
			Tolerance:     envutil.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
			Timeout:       timeout,
			MaxRetries:    retries,
		},
		CinetPay: CinetPayConfig{
			APIKey:     envutil.String("CINETPAY_API_KEY", ""),
			SiteID:     envutil.String("CINETPAY_SITE_ID", ""),
			SecretKey:  envutil.String("CINETPAY_SECRET_KEY", ""),
			BaseURL:    envutil.String("CINETPAY_BASE_URL", ""),
			Timeout:    timeout,
			MaxRetries: retries,
		},
		Flutterwave: FlutterwaveConfig{
			SecretKey:     envutil.String("FLUTTERWAVE_SECRET_KEY", ""),
			WebhookSecret: envutil.String("FLUTTERWAVE_WEBHOOK_SECRET", ""),
			BaseURL:       envutil.String("FLUTTERWAVE_BASE_URL", ""),
			Timeout:       timeout,
			MaxRetries:    retries,
		},
	}
}

// Registry resolves adapters and checkout gateways by provider name.
type Registry struct {
	adapters map[string]Adapter
	gateways map[string]CheckoutGateway
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: map[string]Adapter{},
		gateways: map[string]CheckoutGateway{},
	}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// NewRegistryFromConfig builds the adapters listed in cfg.Enabled.
func NewRegistryFromConfig(log *logger.Logger, cfg Config) (*Registry, error) {
	r := NewRegistry()
	for _, name := range cfg.Enabled {
		switch name {
		case ProviderStripe:
			r.Register(NewStripe(log, cfg.Stripe))
		case ProviderCinetPay:
			r.Register(NewCinetPay(log, cfg.CinetPay))
		case ProviderFlutterwave:
			r.Register(NewFlutterwave(log, cfg.Flutterwave))
		default:
			return nil, fmt.Errorf("unknown payment provider %q", name)
		}
	}
	return r, nil
}

// Register adds a; adapters that also open checkouts are registered as gateways.
func (r *Registry) Register(a Adapter) {
	name := strings.ToLower(a.Provider())
	r.adapters[name] = a
	if g, ok := a.(CheckoutGateway); ok {
		r.gateways[name] = g
	}
}

func (r *Registry) Adapter(provider string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: payment provider %q", domainerrs.ErrNotFound, provider)
	}
	return a, nil
}

func (r *Registry) Gateway(provider string) (CheckoutGateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: checkout provider %q", domainerrs.ErrNotFound, provider)
	}
	return g, nil
}

func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
