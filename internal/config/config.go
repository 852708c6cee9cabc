package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "STOREFRONT"

// Client configures the storefront cart client. Variables carry the
// STOREFRONT_ prefix, e.g. STOREFRONT_API_BASE.
type Client struct {
	APIBase       string        `envconfig:"API_BASE" required:"true"`
	CartStore     string        `envconfig:"CART_STORE" default:"file"`
	CartStorePath string        `envconfig:"CART_STORE_PATH"`
	SessionPath   string        `envconfig:"SESSION_PATH"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	DataDir       string        `envconfig:"DATA_DIR"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"cart_events"`

	ValidateEmail    string `envconfig:"VALIDATE_EMAIL"`
	ValidatePassword string `envconfig:"VALIDATE_PASSWORD"`

	MergeConcurrency       int  `envconfig:"MERGE_CONCURRENCY" default:"4"`
	RetainFailedMergeLines bool `envconfig:"RETAIN_FAILED_MERGE_LINES" default:"false"`
}

// Load reads .env files when present, then the environment.
func Load(files ...string) (*Client, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("env file not loaded, using process environment", "error", err)
	}

	var cfg Client
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dir := cfg.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".perfume_shop")
	}
	if cfg.CartStorePath == "" {
		cfg.CartStorePath = defaultStorePath(dir, cfg.CartStore)
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = filepath.Join(dir, "session.json")
	}
	return &cfg, nil
}

// RefreshEnabled reports whether credentials for token refresh are set.
func (c *Client) RefreshEnabled() bool {
	return c.ValidateEmail != "" && c.ValidatePassword != ""
}

func defaultStorePath(dir, kind string) string {
	if kind == "sqlite" {
		return filepath.Join(dir, "cart.db")
	}
	return filepath.Join(dir, "guestCart.json")
}
