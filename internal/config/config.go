// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	BaseURL        string        `env:"BASE_URL"`
	DBPath         string        `env:"DB_PATH" envDefault:"mealplan.db"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"text"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	Stripe   StripeConfig
	Auth     AuthConfig
	MealPlan MealPlanConfig
	S3       S3Config
	Email    EmailConfig
	Push     PushConfig
}

type StripeConfig struct {
	SecretKey      string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	WeeklyPriceID  string `env:"STRIPE_PRICE_WEEKLY"`
	MonthlyPriceID string `env:"STRIPE_PRICE_MONTHLY"`
	YearlyPriceID  string `env:"STRIPE_PRICE_YEARLY"`
}

type AuthConfig struct {
	IssuerURL string `env:"AUTH_ISSUER_URL"`
	JWKSURL   string `env:"AUTH_JWKS_URL"`
	Audience  string `env:"AUTH_AUDIENCE"`
}

// MealPlanConfig configures generation. Timeout bounds the generate route
// instead of REQUEST_TIMEOUT.
type MealPlanConfig struct {
	APIURL  string        `env:"MEALPLAN_API_URL" envDefault:"https://api.openai.com/v1"`
	APIKey  string        `env:"MEALPLAN_API_KEY"`
	Model   string        `env:"MEALPLAN_MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"MEALPLAN_TIMEOUT" envDefault:"90s"`
}

type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `env:"EMAIL_FROM"`
}

type PushConfig struct {
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
}

// Load reads envFile into the process environment when it exists, then
// parses the environment. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	return parse(env.Options{})
}

// FromMap parses settings from vars instead of the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate reports every setting the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Auth.IssuerURL == "" {
		errs = append(errs, errors.New("AUTH_ISSUER_URL is required"))
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("BASE_URL is invalid: %w", err))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.MealPlan.Timeout <= 0 {
		errs = append(errs, errors.New("MEALPLAN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// WriteTimeout is the server write deadline. It outlasts the longest
// route deadline so a timed-out handler can still write its error.
func (c *Config) WriteTimeout() time.Duration {
	return max(c.RequestTimeout, c.MealPlan.Timeout) + 5*time.Second
}

// OriginPatterns lists the hosts allowed to open websockets.
func (c *Config) OriginPatterns() []string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
