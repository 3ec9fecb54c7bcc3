package config

import (
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration loaded from the environment (and .env when present).
type Config struct {
	GoEnv string `envconfig:"GO_ENV" default:"development"`
	Port  string `envconfig:"PORT" default:"8080"`

	DBDriver       string `envconfig:"DB_DRIVER" default:"mysql"`
	DBUser         string `envconfig:"DB_USER"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBHost         string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort         string `envconfig:"DB_PORT" default:"3306"`
	DBName         string `envconfig:"DB_NAME" default:"shop"`
	DBPath         string `envconfig:"DB_PATH" default:"shop.db"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	SkipMigrations bool   `envconfig:"SKIP_MIGRATIONS" default:"false"`

	RedisAddress string `envconfig:"REDIS_ADDRESS"`

	LowStockThreshold   int           `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
	RejectNegativeStock bool          `envconfig:"REJECT_NEGATIVE_STOCK" default:"false"`
	DashboardCacheTTL   time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"5m"`
	PhoneRegion         string        `envconfig:"PHONE_REGION" default:"MM"`

	PubSubProjectID string `envconfig:"PUBSUB_PROJECT_ID"`
	LedgerTopic     string `envconfig:"LEDGER_TOPIC"`

	ReconcileInterval  time.Duration `envconfig:"RECONCILE_INTERVAL" default:"0s"`
	CorsAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS"`

	RateLimitEnabled     bool          `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	RateLimitMaxRequests int64         `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"600"`
	RateLimitWindow      time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
}

var (
	cfg   *Config
	cfgMu sync.RWMutex
)

// LoadConfig reads .env (if any) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	unsetEmptyKeys()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// unsetEmptyKeys drops config variables that are present but empty (`KEY=` in .env),
// so envconfig applies the field default instead of parsing "".
func unsetEmptyKeys() {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if v, ok := os.LookupEnv(key); ok && v == "" {
			_ = os.Unsetenv(key)
		}
	}
}

// Get returns the active configuration, loading it from the environment on first use.
// An environment that cannot be parsed stops the process.
func Get() *Config {
	cfgMu.RLock()
	c := cfg
	cfgMu.RUnlock()
	if c != nil {
		return c
	}

	loaded, err := LoadConfig()
	if err != nil {
		GetLogger().WithField("module", "config").Fatal("invalid environment: " + err.Error())
	}
	cfgMu.Lock()
	if cfg == nil {
		cfg = loaded
	}
	c = cfg
	cfgMu.Unlock()
	return c
}

// Set replaces the active configuration.
func Set(c *Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

// Defaults returns a Config populated with the documented default values.
func Defaults() *Config {
	return &Config{
		GoEnv:             "development",
		Port:              "8080",
		DBDriver:          "mysql",
		DBHost:            "127.0.0.1",
		DBPort:            "3306",
		DBName:            "shop",
		DBPath:            "shop.db",
		DBMaxOpenConns:    50,
		DBMaxIdleConns:    25,
		LowStockThreshold: 5,
		DashboardCacheTTL: 5 * time.Minute,
		PhoneRegion:       "MM",

		RateLimitMaxRequests: 600,
		RateLimitWindow:      time.Minute,
	}
}

func (c *Config) IsProduction() bool {
	return c != nil && c.GoEnv == "production"
}
