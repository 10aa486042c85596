package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionStoreDatabase = "database"
	SessionStoreRedis    = "redis"

	// DevSecret is used when AUTH_SECRET is unset. Never acceptable in production.
	DevSecret = "dev-secret-change-in-production"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port      string
	StaticDir string // SPA build output (index.html + assets)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// AuthConfig holds identity provider and session gate configuration
type AuthConfig struct {
	BaseURL          string
	Secret           string
	SecretConfigured bool // false when falling back to DevSecret
	AdminEmail       string
	SessionTTL       time.Duration
	SessionStore     string // "database" or "redis"
	CookieName       string

	// DemoFallbackEnabled substitutes a placeholder identity when no session
	// resolves. Only for demo deployments.
	DemoFallbackEnabled bool
}

// CORSConfig holds the cross-origin allow-list
type CORSConfig struct {
	AllowedOrigins  []string
	AllowedSuffixes []string
	// WildcardFallback lets any unrecognized origin through. Off unless set
	// explicitly; kept only to reproduce legacy deployments.
	WildcardFallback bool
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	CleanupSchedule string // cron expression for expired-session purge
	Concurrency     int
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

var (
	defaultAllowedOrigins = []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"https://runable.cloud",
		"https://runable.com",
	}
	defaultAllowedSuffixes = []string{".e2b.app", ".workers.dev", ".pages.dev"}
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function so tests can
// avoid touching the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := envReader{get: getenv}

	secret := env.str("AUTH_SECRET", "")
	secretConfigured := secret != ""
	if !secretConfigured {
		secret = DevSecret
	}

	baseURL := env.first("AUTH_BASE_URL", "BETTER_AUTH_URL", "BASE_URL")

	cfg := &Config{
		Server: ServerConfig{
			Port:      env.str("PORT", "8080"),
			StaticDir: env.str("STATIC_DIR", "dist"),
		},
		Database: DatabaseConfig{
			URL: env.str("DATABASE_URL", "ailawyer.sqlite"),
		},
		Redis: RedisConfig{
			Address: env.str("REDIS_ADDRESS", "localhost:6379"),
		},
		Auth: AuthConfig{
			BaseURL:          strings.TrimRight(baseURL, "/"),
			Secret:           secret,
			SecretConfigured: secretConfigured,
			AdminEmail:       strings.ToLower(strings.TrimSpace(env.str("ADMIN_EMAIL", ""))),
			SessionTTL:       env.duration("SESSION_TTL", 7*24*time.Hour),
			SessionStore:     strings.ToLower(env.str("SESSION_STORE", SessionStoreDatabase)),
			CookieName:       env.str("SESSION_COOKIE_NAME", "ailawyer.session_token"),

			DemoFallbackEnabled: env.boolean("DEMO_FALLBACK_ENABLED", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   env.list("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
			AllowedSuffixes:  env.list("CORS_ALLOWED_SUFFIXES", defaultAllowedSuffixes),
			WildcardFallback: env.boolean("CORS_WILDCARD_FALLBACK", false),
		},
		Worker: WorkerConfig{
			CleanupSchedule: env.str("SESSION_CLEANUP_SCHEDULE", "*/15 * * * *"),
			Concurrency:     env.integer("WORKER_CONCURRENCY", 4),
		},
		Logging: LoggingConfig{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
	}

	if len(env.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(env.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Auth.SessionStore {
	case SessionStoreDatabase, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want %q or %q)", c.Auth.SessionStore, SessionStoreDatabase, SessionStoreRedis)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency)
	}
	return nil
}

// envReader collects parse errors instead of failing on the first one
type envReader struct {
	get  func(string) string
	errs []string
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

// first returns the value of the first key that is set
func (e *envReader) first(keys ...string) string {
	for _, key := range keys {
		if v := e.str(key, ""); v != "" {
			return v
		}
	}
	return ""
}

func (e *envReader) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a boolean", key, raw))
		return def
	}
	return v
}

func (e *envReader) integer(key string, def int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a duration", key, raw))
		return def
	}
	return v
}

// list splits a comma-separated value; an unset variable yields a copy of def
func (e *envReader) list(key string, def []string) []string {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
