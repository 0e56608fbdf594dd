package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@docrelay.local"`

	// ----------------------------
	// Workers
	// ----------------------------
	WorkerCount     int `envconfig:"WORKER_COUNT" default:"5"`
	RateLimit       int `envconfig:"RATE_LIMIT" default:"10"`
	RetryAttempts   int `envconfig:"RETRY_ATTEMPTS" default:"3"`
	QueueSize       int `envconfig:"QUEUE_SIZE" default:"100"`
	BulkConcurrency int `envconfig:"BULK_CONCURRENCY" default:"1"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	// ----------------------------
	// Blob storage
	// ----------------------------
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`

	Drive       DriveConfig
	Idempotency IdempotencyConfig
}

// DriveConfig enables cloud folder delivery. An empty credentials file leaves
// the Drive client unconfigured.
type DriveConfig struct {
	CredentialsFile string `envconfig:"DRIVE_CREDENTIALS_FILE" default:""`
	RootFolderID    string `envconfig:"DRIVE_ROOT_FOLDER_ID" default:""`
}

func (d DriveConfig) Enabled() bool {
	return d.CredentialsFile != ""
}

// IdempotencyConfig selects the guard backend. Without RedisURL the guard
// falls back to process memory.
type IdempotencyConfig struct {
	RedisURL string        `envconfig:"REDIS_URL" default:""`
	RunTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"30m"`
	DoneTTL  time.Duration `envconfig:"IDEMPOTENCY_DONE_TTL" default:"168h"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
