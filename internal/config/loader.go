package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "firmsync.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "FIRMSYNC_PORT")
	setString(&cfg.Server.CORSOrigin, "FIRMSYNC_CORS_ORIGIN")

	setString(&cfg.CentralDB.DSN, "DATABASE_URL")
	setInt32(&cfg.CentralDB.MaxConns, "FIRMSYNC_PG_MAX_CONNS")
	setInt32(&cfg.CentralDB.MinConns, "FIRMSYNC_PG_MIN_CONNS")
	setDuration(&cfg.CentralDB.MaxConnLifetime, "FIRMSYNC_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.CentralDB.MaxConnIdleTime, "FIRMSYNC_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.CentralDB.HealthCheck, "FIRMSYNC_PG_HEALTH_CHECK")

	setInt32(&cfg.TenantPool.MaxConns, "FIRMSYNC_TENANT_MAX_CONNS")
	setInt32(&cfg.TenantPool.MinConns, "FIRMSYNC_TENANT_MIN_CONNS")
	setDuration(&cfg.TenantPool.MaxConnLifetime, "FIRMSYNC_TENANT_MAX_CONN_LIFETIME")
	setDuration(&cfg.TenantPool.MaxConnIdleTime, "FIRMSYNC_TENANT_MAX_CONN_IDLE_TIME")

	setString(&cfg.Provisioner.URL, "FIRMSYNC_PROVISIONER_URL")
	setString(&cfg.Provisioner.APIKey, "FIRMSYNC_PROVISIONER_API_KEY")
	setDuration(&cfg.Provisioner.Timeout, "FIRMSYNC_PROVISIONER_TIMEOUT")

	setBool(&cfg.Auth.Enabled, "FIRMSYNC_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "FIRMSYNC_JWT_SECRET")

	setDuration(&cfg.Ghost.TTL, "FIRMSYNC_GHOST_TTL")

	setString(&cfg.Secrets.Key, "FIRMSYNC_SECRETS_KEY")

	setInt64(&cfg.Cache.MaxSizeMB, "FIRMSYNC_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.FirmTTL, "FIRMSYNC_CACHE_FIRM_TTL")

	setString(&cfg.Audit.NATSURL, "FIRMSYNC_AUDIT_NATS_URL")
	setString(&cfg.Audit.Stream, "FIRMSYNC_AUDIT_STREAM")

	setInt(&cfg.Migrate.MaxParallel, "FIRMSYNC_MIGRATE_MAX_PARALLEL")

	setString(&cfg.Logging.Level, "FIRMSYNC_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FIRMSYNC_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "FIRMSYNC_LOG_ASYNC")

	setBool(&cfg.Telemetry.Enabled, "FIRMSYNC_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "FIRMSYNC_OTEL_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.CentralDB.DSN == "" {
		return errors.New("central_db.dsn is required")
	}
	if cfg.CentralDB.MaxConns < 1 {
		return errors.New("central_db.max_conns must be >= 1")
	}
	if cfg.TenantPool.MaxConns < 1 {
		return errors.New("tenant_pool.max_conns must be >= 1")
	}
	if cfg.Ghost.TTL <= 0 {
		return errors.New("ghost.ttl must be positive")
	}
	if cfg.Migrate.MaxParallel < 1 {
		return errors.New("migrate.max_parallel must be >= 1")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
