package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const envPrefix = "CHECKOUT_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	Postgres struct {
		DSN      string `koanf:"dsn"`
		MaxConns int32  `koanf:"max_conns"`
	} `koanf:"postgres"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
	} `koanf:"kafka"`

	Auth struct {
		JWTSecret string `koanf:"jwt_secret"`
	} `koanf:"auth"`

	Flitt struct {
		MerchantID  int64         `koanf:"merchant_id"`
		SecretKey   string        `koanf:"secret_key"`
		CheckoutURL string        `koanf:"checkout_url"`
		Currency    string        `koanf:"currency"`
		Timeout     time.Duration `koanf:"timeout"`
	} `koanf:"flitt"`

	Checkout struct {
		BackendURL     string        `koanf:"backend_url"`
		FrontendURL    string        `koanf:"frontend_url"`
		OrderRefPrefix string        `koanf:"order_ref_prefix"`
		DeliveryFee    string        `koanf:"delivery_fee"`
		AssetsURL      string        `koanf:"assets_url"`
		IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
		StatusCacheTTL time.Duration `koanf:"status_cache_ttl"`
	} `koanf:"checkout"`

	Shortfall struct {
		Group   string `koanf:"group"`
		Workers int    `koanf:"workers"`
	} `koanf:"shortfall"`
}

func defaults() Config {
	var c Config
	c.App.Name = "checkout-api"
	c.App.HTTPAddr = ":8081"
	c.App.LogLevel = "info"
	c.App.LogFile = "./logs/app.log"
	c.HTTP.RequestTimeout = 10 * time.Second
	c.Postgres.MaxConns = 8
	c.Redis.Addr = "redis:6379"
	c.Kafka.Brokers = []string{"kafka:9092"}
	c.Flitt.CheckoutURL = "https://pay.flitt.com/api/checkout/url"
	c.Flitt.Currency = "GEL"
	c.Flitt.Timeout = 10 * time.Second
	c.Checkout.OrderRefPrefix = "ord_"
	c.Checkout.DeliveryFee = "5.00"
	c.Checkout.IdempotencyTTL = 24 * time.Hour
	c.Checkout.StatusCacheTTL = 5 * time.Minute
	c.Shortfall.Group = "shortfall-audit"
	c.Shortfall.Workers = 4
	return c
}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any), then
// CHECKOUT_* environment variables, e.g. CHECKOUT_POSTGRES__DSN.
func Load() (Config, error) {
	k := koanf.New(".")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.Kafka.Brokers = splitCSV(cfg.Kafka.Brokers)
	return cfg, nil
}

// Validate checks what the API process needs. The shortfall worker only
// needs storage and brokers, see ValidateWorker.
func (c Config) Validate() error {
	if err := c.ValidateWorker(); err != nil {
		return err
	}
	var errs []error
	if c.Flitt.MerchantID <= 0 {
		errs = append(errs, errors.New("flitt.merchant_id required"))
	}
	if c.Flitt.SecretKey == "" {
		errs = append(errs, errors.New("flitt.secret_key required"))
	}
	if c.Checkout.BackendURL == "" {
		errs = append(errs, errors.New("checkout.backend_url required"))
	}
	if c.Checkout.FrontendURL == "" {
		errs = append(errs, errors.New("checkout.frontend_url required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret required"))
	}
	if _, err := c.DeliveryFee(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) ValidateWorker() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers required")
	}
	return nil
}

func (c Config) DeliveryFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Checkout.DeliveryFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("checkout.delivery_fee: %w", err)
	}
	if fee.IsNegative() {
		return decimal.Zero, errors.New("checkout.delivery_fee must not be negative")
	}
	return fee, nil
}

func (c Config) CallbackURL() string {
	return strings.TrimRight(c.Checkout.BackendURL, "/") + "/payments/callback"
}

func (c Config) ResponseURL() string {
	return strings.TrimRight(c.Checkout.FrontendURL, "/") + "/checkout/result"
}

// splitCSV flattens entries such as "a:9092,b:9092" coming from a single env var.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
