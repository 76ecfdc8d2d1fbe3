package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server
	Cache
	Workers
	Backend
	Providers
	Checkout
	Kafka
}

type Server struct {
	Port      string
	RateRPS   float64
	RateBurst int
}

type Cache struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether a redis host is configured. Without one the
// credential store and checkout lock live in memory.
func (c Cache) Enabled() bool {
	return c.Host != ""
}

type Workers struct {
	OutcomeCount      int
	OutcomeBufferSize int
}

type Backend struct {
	URL string
}

type Providers struct {
	CardURL     string
	CardKey     string
	HostedURL   string
	HostedToken string
	PublicURL   string
}

type Checkout struct {
	Currency       string
	ConfirmTimeout time.Duration
	LockTTL        time.Duration
}

type Kafka struct {
	Brokers []string
	Topic   string
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Server: Server{
			Port:      v.GetString("SERVER_PORT"),
			RateRPS:   v.GetFloat64("RATE_RPS"),
			RateBurst: v.GetInt("RATE_BURST"),
		},
		Cache: Cache{
			Host:     v.GetString("CACHE_HOST"),
			Port:     v.GetString("CACHE_PORT"),
			Password: v.GetString("CACHE_PASSWORD"),
		},
		Workers: Workers{
			OutcomeCount:      v.GetInt("OUTCOME_WORKERS_COUNT"),
			OutcomeBufferSize: v.GetInt("OUTCOME_BUFFER_SIZE"),
		},
		Backend: Backend{
			URL: strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		},
		Providers: Providers{
			CardURL:     strings.TrimRight(v.GetString("CARD_PROVIDER_URL"), "/"),
			CardKey:     v.GetString("CARD_PROVIDER_KEY"),
			HostedURL:   strings.TrimRight(v.GetString("HOSTED_PROVIDER_URL"), "/"),
			HostedToken: v.GetString("HOSTED_PROVIDER_TOKEN"),
			PublicURL:   strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		},
		Checkout: Checkout{
			Currency:       strings.ToUpper(v.GetString("CHECKOUT_CURRENCY")),
			ConfirmTimeout: v.GetDuration("CHECKOUT_CONFIRM_TIMEOUT"),
			LockTTL:        v.GetDuration("CHECKOUT_LOCK_TTL"),
		},
		Kafka: Kafka{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("RATE_RPS", 20)
	v.SetDefault("RATE_BURST", 40)

	v.SetDefault("CACHE_HOST", "")
	v.SetDefault("CACHE_PORT", "6379")
	v.SetDefault("CACHE_PASSWORD", "")

	v.SetDefault("OUTCOME_WORKERS_COUNT", 2)
	v.SetDefault("OUTCOME_BUFFER_SIZE", 100)

	v.SetDefault("BACKEND_URL", "http://localhost:3000/api")

	v.SetDefault("CARD_PROVIDER_URL", "https://api.stripe.com")
	v.SetDefault("CARD_PROVIDER_KEY", "")
	v.SetDefault("HOSTED_PROVIDER_URL", "https://api-m.sandbox.paypal.com")
	v.SetDefault("HOSTED_PROVIDER_TOKEN", "")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("CHECKOUT_CURRENCY", "USD")
	// Zero keeps a stalled confirmation in submitting with no deadline.
	v.SetDefault("CHECKOUT_CONFIRM_TIMEOUT", "0s")
	v.SetDefault("CHECKOUT_LOCK_TTL", "15m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "checkout_outcomes")
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
