// Package config reads service settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

type Common struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type AuthConfig struct {
	TokenSecret string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	OwnerEmail  string        `env:"OWNER_EMAIL,required,notEmpty"`
}

type StoreConfig struct {
	Backend     string `env:"STORE_BACKEND" envDefault:"mongo"`
	URI         string `env:"MONGO_URI"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	MongoHost   string `env:"MONGO_HOST"`
	Database    string `env:"MONGO_DATABASE" envDefault:"the-story-keeper"`
	TablePrefix string `env:"DYNAMO_TABLE_PREFIX" envDefault:"storykeeper-"`
}

type AWSConfig struct {
	Region              string `env:"AWS_REGION" envDefault:"us-east-1"`
	EndpointOverride    string `env:"AWS_ENDPOINT_OVERRIDE"`
	CloudWatchNamespace string `env:"CLOUDWATCH_NAMESPACE" envDefault:"StoryKeeper"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"EMAIL_FROM"`
	// Timeout bounds one delivery: dial, dialogue and DATA.
	Timeout time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

type NotifyConfig struct {
	QueueURL string `env:"NOTIFY_QUEUE_URL"`
	SMTP     SMTPConfig
	// SendTimeout bounds each detached send.
	SendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`
	// DrainTimeout bounds how long a Lambda invocation waits for pending
	// sends after the response is ready.
	DrainTimeout time.Duration `env:"NOTIFY_DRAIN_TIMEOUT" envDefault:"1s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	CacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
}

// Config is the API service configuration.
type Config struct {
	Common
	RunLocal bool   `env:"RUN_LOCAL"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	Auth   AuthConfig
	Store  StoreConfig
	AWS    AWSConfig
	Notify NotifyConfig
	Redis  RedisConfig

	StripeSecretKey    string        `env:"STRIPE_SECRET_KEY"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IssueRatePerMinute int           `env:"ISSUE_RATE_PER_MINUTE" envDefault:"30"`
}

// WorkerConfig is the notification worker configuration.
type WorkerConfig struct {
	Common
	AWS  AWSConfig
	SMTP SMTPConfig

	// RunLocal delivers LocalBody once instead of starting the Lambda runtime.
	RunLocal  bool   `env:"RUN_LOCAL"`
	LocalBody string `env:"LOCAL_SQS_BODY"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadWorker() (WorkerConfig, error) {
	_ = godotenv.Load()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return WorkerConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SMTP.Host == "" {
		return WorkerConfig{}, errors.New("SMTP_HOST is required for the worker")
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case BackendMongo, BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of mongo, dynamodb, memory; got %q", c.Store.Backend)
	}
	if c.IssueRatePerMinute <= 0 {
		return errors.New("ISSUE_RATE_PER_MINUTE must be positive")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be positive")
	}
	if c.Notify.SendTimeout <= 0 || c.Notify.DrainTimeout <= 0 {
		return errors.New("NOTIFY_SEND_TIMEOUT and NOTIFY_DRAIN_TIMEOUT must be positive")
	}
	// On Lambda the API hands mail to the worker through SQS; direct SMTP
	// would run inside the invocation that owes the response.
	if !c.RunLocal && c.Notify.SMTP.Host != "" && c.Notify.QueueURL == "" {
		return errors.New("NOTIFY_QUEUE_URL is required when SMTP_HOST is set outside RUN_LOCAL")
	}
	return nil
}

// MongoURI returns MONGO_URI, or builds an Atlas URI from DB_USER,
// DB_PASSWORD and MONGO_HOST. Without either it points at a local server.
func (s StoreConfig) MongoURI() string {
	if s.URI != "" {
		return s.URI
	}
	if s.DBUser != "" && s.MongoHost != "" {
		u := url.URL{
			Scheme:   "mongodb+srv",
			User:     url.UserPassword(s.DBUser, s.DBPassword),
			Host:     s.MongoHost,
			Path:     "/",
			RawQuery: "retryWrites=true&w=majority",
		}
		return u.String()
	}
	return "mongodb://localhost:27017"
}
