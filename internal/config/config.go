package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable (or the same key, lower-cased, in CONFIG_FILE).
type Config struct {
	Env     string // application environment (development, test, production)
	Port    string // HTTP port to listen on
	BaseURL string // public origin used when building pagination links

	DB DBConfig

	JWTSecret        string        // secret used to sign access tokens
	JWTRefreshSecret string        // secret used to sign refresh tokens
	AccessTTL        time.Duration // access token lifetime
	RefreshTTL       time.Duration // refresh token lifetime
	BcryptCost       int           // bcrypt cost for password hashing

	UploadDir      string // where bulk uploads are spooled before parsing
	UploadMaxBytes int64  // maximum accepted upload size

	TokenCleanupInterval time.Duration // 0 disables the background sweep
	RabbitMQURL          string        // empty disables bulk-import events

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// DBConfig selects and addresses the relational store.
type DBConfig struct {
	Driver string // mysql, postgres or sqlite
	DSN    string // full DSN; built from the fields below for mysql when empty
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// IsDevelopment reports whether internal error details may be shown to clients.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

var errMissing = errors.New("missing required config")

// Load reads an optional .env file (envFile, or ".env" when empty), then
// resolves every key from the environment with viper, falling back to
// defaults.  JWT_SECRET and JWT_REFRESH_SECRET are required.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Env:     v.GetString("APP_ENV"),
		Port:    v.GetString("APP_PORT"),
		BaseURL: strings.TrimRight(v.GetString("BASE_URL"), "/"),
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
			User:   v.GetString("DB_USER"),
			Pass:   v.GetString("DB_PASS"),
			Host:   v.GetString("DB_HOST"),
			Port:   v.GetString("DB_PORT"),
			Name:   v.GetString("DB_NAME"),
		},
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTRefreshSecret:     v.GetString("JWT_REFRESH_SECRET"),
		AccessTTL:            v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTTL:           v.GetDuration("REFRESH_TOKEN_TTL"),
		BcryptCost:           v.GetInt("BCRYPT_COST"),
		UploadDir:            v.GetString("UPLOAD_DIR"),
		UploadMaxBytes:       v.GetInt64("UPLOAD_MAX_BYTES"),
		TokenCleanupInterval: v.GetDuration("TOKEN_CLEANUP_INTERVAL"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		Redis:                loadRedisConfig(v),
		RateLimit:            loadRateLimitConfig(v),
		Cache:                loadCacheConfig(v),
	}

	for key, val := range map[string]string{
		"JWT_SECRET":         cfg.JWTSecret,
		"JWT_REFRESH_SECRET": cfg.JWTRefreshSecret,
	} {
		if val == "" {
			return Config{}, fmt.Errorf("%w: %s", errMissing, key)
		}
	}
	switch cfg.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, errors.New("token TTLs must be positive")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "billing")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("TOKEN_CLEANUP_INTERVAL", "1h")
	setRedisDefaults(v)
	setRateLimitDefaults(v)
	setCacheDefaults(v)
}
