package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the objectd service.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// StorageConfig describes where object bytes live and how buckets are addressed.
type StorageConfig struct {
	// DataPath is the base directory; files land under DataPath/files and secrets under DataPath/secrets.
	DataPath       string
	DomainSuffix   string
	APIAlias       string
	HTTPS          bool
	DefaultAdapter string
	// CascadeAncestors makes deleting an object also delete its parent chain.
	CascadeAncestors bool
	PendingTTL       time.Duration
	SweepInterval    time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	RootToken string
	// RootTokenHash is a bcrypt hash accepted in place of RootToken.
	RootTokenHash   string
	SignatureSecret string
	SignatureTTL    time.Duration
	MaxSignatureTTL time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	dataPath, err := resolveDataPath(getString("OBJECTD_DATA_PATH", "./tmp"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Host:         getString("OBJECTD_HOST", "0.0.0.0"),
			Port:         getInt("OBJECTD_PORT", 3000),
			ReadTimeout:  getDuration("OBJECTD_READ_TIMEOUT", 15*time.Minute),
			WriteTimeout: getDuration("OBJECTD_WRITE_TIMEOUT", 15*time.Minute),
			IdleTimeout:  getDuration("OBJECTD_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "objectd"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "objectd"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		Storage: StorageConfig{
			DataPath:         dataPath,
			DomainSuffix:     strings.ToLower(getString("OBJECTD_DOMAIN_SUFFIX", "localhost")),
			APIAlias:         strings.ToLower(getString("OBJECTD_API_ALIAS", "api")),
			HTTPS:            getBool("OBJECTD_HTTPS", false),
			DefaultAdapter:   getString("OBJECTD_DEFAULT_ADAPTER", "blob"),
			CascadeAncestors: getBool("OBJECTD_CASCADE_ANCESTORS", true),
			PendingTTL:       getDuration("OBJECTD_PENDING_TTL", time.Hour),
			SweepInterval:    getDuration("OBJECTD_SWEEP_INTERVAL", 10*time.Minute),
		},
		Auth: AuthConfig{
			RootToken:       getString("OBJECTD_ROOT_TOKEN", ""),
			RootTokenHash:   getString("OBJECTD_ROOT_TOKEN_HASH", ""),
			SignatureSecret: getString("OBJECTD_SIGNATURE_SECRET", ""),
			SignatureTTL:    getDuration("OBJECTD_SIGNATURE_TTL", 15*time.Minute),
			MaxSignatureTTL: getDuration("OBJECTD_SIGNATURE_MAX_TTL", 7*24*time.Hour),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("OBJECTD_METRICS_PATH", "/metrics"),
		},
	}

	if cfg.Storage.DomainSuffix == "" {
		return Config{}, fmt.Errorf("OBJECTD_DOMAIN_SUFFIX must not be empty")
	}
	return cfg, nil
}

func resolveDataPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve data path: %w", err)
	}
	return abs, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
