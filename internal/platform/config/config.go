package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultAPIBaseURL       = "http://localhost:8081/api"
	defaultAPITimeout       = 10 * time.Second
	defaultAPIMaxRetries    = 2
	defaultAPIRetryBackoff  = 200 * time.Millisecond
	defaultStorageDriver    = "file"
	defaultStorageDir       = ".storefront"
	defaultRedisAddr        = "localhost:6379"
	defaultStorageTTL       = 30 * 24 * time.Hour
	defaultLogLevel         = "info"
	defaultLocale           = "pt-BR"
	defaultShippingDebounce = 300 * time.Millisecond
	defaultProfileIdleTTL   = 30 * time.Minute
	defaultMaxProfiles      = 10000
	minCookieHashKeyLength  = 32
)

// Storage drivers understood by localstore.Open.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Storage  StorageConfig
	Cookie   CookieConfig
	Checkout CheckoutConfig
	Profiles ProfilesConfig
	Log      LogConfig
}

// ServerConfig configures the storefront HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// APIConfig describes the marketplace REST backend and the outbound call policy.
type APIConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// StorageConfig selects where per-profile state (session, cart cache) is kept.
type StorageConfig struct {
	Driver        string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// CookieConfig holds the profile cookie keys. Empty keys are generated per process.
type CookieConfig struct {
	HashKey  []byte
	BlockKey []byte
	Secure   bool
}

// CheckoutConfig tunes checkout behaviour.
type CheckoutConfig struct {
	DefaultLocale    string
	ShippingDebounce time.Duration
}

// ProfilesConfig bounds the in-memory profile registry. Evicted profiles are
// rebuilt from the local store on their next request.
type ProfilesConfig struct {
	IdleTTL time.Duration
	Max     int
}

// LogConfig controls logger output.
type LogConfig struct {
	Level string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the storefront configuration by combining defaults, .env overrides,
// environment variables and explicit values.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		API: APIConfig{
			BaseURL:      strings.TrimRight(stringWithDefault(lookup, "STOREFRONT_API_BASE_URL", defaultAPIBaseURL), "/"),
			Timeout:      durationWithDefault(lookup, "STOREFRONT_API_TIMEOUT", defaultAPITimeout),
			MaxRetries:   intWithDefault(lookup, "STOREFRONT_API_MAX_RETRIES", defaultAPIMaxRetries),
			RetryBackoff: durationWithDefault(lookup, "STOREFRONT_API_RETRY_BACKOFF", defaultAPIRetryBackoff),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(stringWithDefault(lookup, "STOREFRONT_STORAGE_DRIVER", defaultStorageDriver)),
			Dir:           stringWithDefault(lookup, "STOREFRONT_STORAGE_DIR", defaultStorageDir),
			RedisAddr:     stringWithDefault(lookup, "STOREFRONT_REDIS_ADDR", defaultRedisAddr),
			RedisPassword: stringWithDefault(lookup, "STOREFRONT_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "STOREFRONT_REDIS_DB", 0),
			TTL:           durationWithDefault(lookup, "STOREFRONT_STORAGE_TTL", defaultStorageTTL),
		},
		Cookie: CookieConfig{
			HashKey:  bytesWithDefault(lookup, "STOREFRONT_COOKIE_HASH_KEY"),
			BlockKey: bytesWithDefault(lookup, "STOREFRONT_COOKIE_BLOCK_KEY"),
			Secure:   boolWithDefault(lookup, "STOREFRONT_COOKIE_SECURE", false),
		},
		Checkout: CheckoutConfig{
			DefaultLocale:    stringWithDefault(lookup, "STOREFRONT_DEFAULT_LOCALE", defaultLocale),
			ShippingDebounce: durationWithDefault(lookup, "STOREFRONT_SHIPPING_DEBOUNCE", defaultShippingDebounce),
		},
		Profiles: ProfilesConfig{
			IdleTTL: durationWithDefault(lookup, "STOREFRONT_PROFILE_IDLE_TTL", defaultProfileIdleTTL),
			Max:     intWithDefault(lookup, "STOREFRONT_MAX_PROFILES", defaultMaxProfiles),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_LOG_LEVEL", stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel))),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		missing = append(missing, "Server.Port")
	}
	if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "API.BaseURL")
	}
	if cfg.API.Timeout <= 0 {
		missing = append(missing, "API.Timeout")
	}
	if cfg.API.MaxRetries < 0 {
		missing = append(missing, "API.MaxRetries")
	}
	if cfg.API.RetryBackoff < 0 {
		missing = append(missing, "API.RetryBackoff")
	}
	switch cfg.Storage.Driver {
	case StorageFile:
		if strings.TrimSpace(cfg.Storage.Dir) == "" {
			missing = append(missing, "Storage.Dir")
		}
	case StorageRedis:
		if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
			missing = append(missing, "Storage.RedisAddr")
		}
	case StorageMemory:
	default:
		missing = append(missing, "Storage.Driver")
	}
	if len(cfg.Cookie.HashKey) > 0 && len(cfg.Cookie.HashKey) < minCookieHashKeyLength {
		missing = append(missing, "Cookie.HashKey")
	}
	if n := len(cfg.Cookie.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		missing = append(missing, "Cookie.BlockKey")
	}
	if cfg.Checkout.ShippingDebounce < 0 {
		missing = append(missing, "Checkout.ShippingDebounce")
	}
	if cfg.Profiles.IdleTTL <= 0 {
		missing = append(missing, "Profiles.IdleTTL")
	}
	if cfg.Profiles.Max <= 0 {
		missing = append(missing, "Profiles.Max")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func bytesWithDefault(lookup func(string) (string, bool), key string) []byte {
	if value, ok := lookup(key); ok && value != "" {
		return []byte(value)
	}
	return nil
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
