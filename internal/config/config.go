package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Profile  string `yaml:"profile"`
	HTTPAddr string `yaml:"http_addr"`
	LogDebug bool   `yaml:"log_debug"`

	DatabaseDriver string `yaml:"database_driver"`
	DatabaseDSN    string `yaml:"database_dsn"`

	RedisEnabled  bool   `yaml:"redis_enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	JWTIssuer          string        `yaml:"jwt_issuer"`
	JWTAudience        string        `yaml:"jwt_audience"`
	JWTAccessSecret    string        `yaml:"jwt_access_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	RefreshTokenPepper string        `yaml:"refresh_token_pepper"`

	TagCacheTTL time.Duration `yaml:"tag_cache_ttl"`

	// Request paths matching any of these prefixes bypass the request gate
	// entirely. Login and registration must stay here to avoid a circular
	// dependency on the tokens they mint.
	PublicPathPrefixes []string `yaml:"public_path_prefixes"`

	APIRateLimitRPM  int `yaml:"api_rate_limit_rpm"`
	AuthRateLimitRPM int `yaml:"auth_rate_limit_rpm"`

	BreachCheckEnabled bool   `yaml:"breach_check_enabled"`
	BreachCheckBaseURL string `yaml:"breach_check_base_url"`

	EventsEnabled  bool   `yaml:"events_enabled"`
	EventsAMQPURL  string `yaml:"events_amqp_url"`
	EventsExchange string `yaml:"events_exchange"`

	SweepInterval time.Duration `yaml:"sweep_interval"`

	DefaultLocale string `yaml:"default_locale"`

	OTELServiceName           string        `yaml:"otel_service_name"`
	OTELEnvironment           string        `yaml:"otel_environment"`
	OTELExporterOTLPEndpoint  string        `yaml:"otel_exporter_otlp_endpoint"`
	OTELExporterOTLPInsecure  bool          `yaml:"otel_exporter_otlp_insecure"`
	OTELMetricsEnabled        bool          `yaml:"otel_metrics_enabled"`
	OTELTracesEnabled         bool          `yaml:"otel_traces_enabled"`
	OTELLogsEnabled           bool          `yaml:"otel_logs_enabled"`
	OTELMetricsExportInterval time.Duration `yaml:"otel_metrics_export_interval"`
	EnableOTelHTTP            bool          `yaml:"enable_otel_http"`

	ShutdownTimeout              time.Duration `yaml:"shutdown_timeout"`
	ShutdownHTTPDrainTimeout     time.Duration `yaml:"shutdown_http_drain_timeout"`
	ShutdownObservabilityTimeout time.Duration `yaml:"shutdown_observability_timeout"`
}

func Default() *Config {
	return &Config{
		Profile:                      "dev",
		HTTPAddr:                     ":8080",
		DatabaseDriver:               "postgres",
		RedisAddr:                    "localhost:6379",
		JWTIssuer:                    "storefront-backend",
		JWTAudience:                  "storefront-clients",
		AccessTokenTTL:               15 * time.Minute,
		RefreshTokenTTL:              7 * 24 * time.Hour,
		TagCacheTTL:                  5 * time.Minute,
		PublicPathPrefixes:           []string{"/health", "/api/v1/auth"},
		APIRateLimitRPM:              600,
		AuthRateLimitRPM:             60,
		BreachCheckBaseURL:           "https://api.pwnedpasswords.com",
		EventsExchange:               "storefront.security",
		SweepInterval:                time.Hour,
		DefaultLocale:                "en",
		OTELServiceName:              "storefront-backend",
		OTELEnvironment:              "dev",
		OTELExporterOTLPEndpoint:     "localhost:4317",
		OTELExporterOTLPInsecure:     true,
		OTELMetricsExportInterval:    30 * time.Second,
		ShutdownTimeout:              15 * time.Second,
		ShutdownHTTPDrainTimeout:     5 * time.Second,
		ShutdownObservabilityTimeout: 5 * time.Second,
	}
}

// Load builds the config from defaults, an optional YAML file (CONFIG_FILE
// or the path argument), a .env file when present, and finally environment
// variables, which win.
func Load(ctx context.Context, path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			recordConfigValidationEvent(ctx, cfg.Profile, "failure", "load")
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			recordConfigValidationEvent(ctx, cfg.Profile, "failure", "parse")
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Profile, "APP_PROFILE")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	if err := setBool(&c.LogDebug, "LOG_DEBUG"); err != nil {
		return err
	}
	setString(&c.DatabaseDriver, "DATABASE_DRIVER")
	setString(&c.DatabaseDSN, "DATABASE_URL")
	if err := setBool(&c.RedisEnabled, "REDIS_ENABLED"); err != nil {
		return err
	}
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	if err := setInt(&c.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	setString(&c.JWTIssuer, "JWT_ISSUER")
	setString(&c.JWTAudience, "JWT_AUDIENCE")
	setString(&c.JWTAccessSecret, "JWT_ACCESS_SECRET")
	if err := setDuration(&c.AccessTokenTTL, "JWT_ACCESS_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.RefreshTokenTTL, "REFRESH_TOKEN_TTL"); err != nil {
		return err
	}
	setString(&c.RefreshTokenPepper, "REFRESH_TOKEN_PEPPER")
	if err := setDuration(&c.TagCacheTTL, "TAG_CACHE_TTL"); err != nil {
		return err
	}
	if v := os.Getenv("PUBLIC_PATH_PREFIXES"); v != "" {
		parts := strings.Split(v, ",")
		prefixes := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				prefixes = append(prefixes, p)
			}
		}
		c.PublicPathPrefixes = prefixes
	}
	if err := setInt(&c.APIRateLimitRPM, "API_RATE_LIMIT_RPM"); err != nil {
		return err
	}
	if err := setInt(&c.AuthRateLimitRPM, "AUTH_RATE_LIMIT_RPM"); err != nil {
		return err
	}
	if err := setBool(&c.BreachCheckEnabled, "BREACH_CHECK_ENABLED"); err != nil {
		return err
	}
	setString(&c.BreachCheckBaseURL, "BREACH_CHECK_BASE_URL")
	if err := setBool(&c.EventsEnabled, "EVENTS_ENABLED"); err != nil {
		return err
	}
	setString(&c.EventsAMQPURL, "EVENTS_AMQP_URL")
	setString(&c.EventsExchange, "EVENTS_EXCHANGE")
	if err := setDuration(&c.SweepInterval, "SWEEP_INTERVAL"); err != nil {
		return err
	}
	setString(&c.DefaultLocale, "DEFAULT_LOCALE")
	setString(&c.OTELServiceName, "OTEL_SERVICE_NAME")
	setString(&c.OTELEnvironment, "OTEL_ENVIRONMENT")
	setString(&c.OTELExporterOTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if err := setBool(&c.OTELExporterOTLPInsecure, "OTEL_EXPORTER_OTLP_INSECURE"); err != nil {
		return err
	}
	if err := setBool(&c.OTELMetricsEnabled, "OTEL_METRICS_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.OTELTracesEnabled, "OTEL_TRACES_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.OTELLogsEnabled, "OTEL_LOGS_ENABLED"); err != nil {
		return err
	}
	if err := setDuration(&c.OTELMetricsExportInterval, "OTEL_METRICS_EXPORT_INTERVAL"); err != nil {
		return err
	}
	if err := setBool(&c.EnableOTelHTTP, "ENABLE_OTEL_HTTP"); err != nil {
		return err
	}
	if err := setDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.ShutdownHTTPDrainTimeout, "SHUTDOWN_HTTP_DRAIN_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.ShutdownObservabilityTimeout, "SHUTDOWN_OBSERVABILITY_TIMEOUT")
}

func (c *Config) Validate() error {
	profile := normalizeConfigProfile(c.Profile)
	switch profile {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("validate config: unknown APP_PROFILE %q", c.Profile)
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("validate config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if profile == "prod" && c.DatabaseDSN == "" {
		return fmt.Errorf("validate config: DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		return fmt.Errorf("validate config: JWT_ACCESS_SECRET must be at least 32 bytes")
	}
	if len(c.RefreshTokenPepper) < 16 {
		return fmt.Errorf("validate config: REFRESH_TOKEN_PEPPER must be at least 16 bytes")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("validate config: access token TTL must be shorter than refresh token TTL")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("validate config: SWEEP_INTERVAL must be positive")
	}
	if c.EventsEnabled && c.EventsAMQPURL == "" {
		return fmt.Errorf("validate config: EVENTS_AMQP_URL is required when events are enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}
