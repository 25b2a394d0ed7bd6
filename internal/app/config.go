package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database"
)

const minSecretLength = 16

// Config represents the runtime configuration for the check-in service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures logging and the operational HTTP listener.
type ServerConfig struct {
	OpsAddress      string        `mapstructure:"ops_address"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CredentialsConfig controls issuance and rendering.
type CredentialsConfig struct {
	Secret           string        `mapstructure:"secret"`
	TTL              time.Duration `mapstructure:"ttl"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	QRSize           int           `mapstructure:"qr_size"`
	Directory        string        `mapstructure:"directory"`
	SheetTitle       string        `mapstructure:"sheet_title"`
}

// MaintenanceConfig schedules the background expiry sweep and audit pruning.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ExpirySchedule     string `mapstructure:"expiry_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CHECKIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports every setting that prevents the service from starting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs error

	secret := strings.TrimSpace(c.Credentials.Secret)
	switch {
	case secret == "":
		errs = multierr.Append(errs, errors.New("credentials.secret is required"))
	case len(secret) < minSecretLength:
		errs = multierr.Append(errs, fmt.Errorf("credentials.secret must be at least %d characters", minSecretLength))
	}

	if c.Credentials.TTL < 0 {
		errs = multierr.Append(errs, errors.New("credentials.ttl must not be negative"))
	}
	if c.Credentials.BatchConcurrency <= 0 {
		errs = multierr.Append(errs, errors.New("credentials.batch_concurrency must be positive"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		errs = multierr.Append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	return errs
}

// Connection converts the configuration into database connection options.
func (d DatabaseConfig) Connection() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(d.Driver)),
		Path:   d.Path,
		DSN:    d.DSN,
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		auth = d.Postgres
	case "mysql":
		auth = d.MySQL
	default:
		return cfg
	}

	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ops_address", ":9100")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/checkin.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "checkin")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "checkin")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	// Registered so CHECKIN_CREDENTIALS_SECRET is picked up by Unmarshal.
	v.SetDefault("credentials.secret", "")
	v.SetDefault("credentials.ttl", "0s")
	v.SetDefault("credentials.batch_concurrency", 8)
	v.SetDefault("credentials.qr_size", 400)
	v.SetDefault("credentials.directory", "")
	v.SetDefault("credentials.sheet_title", "")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.expiry_schedule", "@every 5m")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
