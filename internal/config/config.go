package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Collaborator CollaboratorConfig `mapstructure:"collaborator"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	Seed        bool   `mapstructure:"seed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig selects how credentials are checked. "static" uses the demo
// credential table, "remote" delegates to an identity provider.
type AuthConfig struct {
	Mode        string        `mapstructure:"mode"`
	IdentityURL string        `mapstructure:"identity_url"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// CollaboratorConfig bounds every call to the store and identity provider
type CollaboratorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	AlertTopic string   `mapstructure:"alert_topic"`
}

const (
	AuthModeStatic = "static"
	AuthModeRemote = "remote"
)

// Load reads configuration from HYDRO_* environment variables and an
// optional config.yaml, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HYDRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// tolerate "a, b" style lists with stray whitespace
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.seed", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.mode", AuthModeStatic)
	v.SetDefault("auth.identity_url", "")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", "8h")

	v.SetDefault("collaborator.timeout", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.alert_topic", "water-level-alerts")
}

func validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("HYDRO_DATABASE_DSN is required")
	}
	if cfg.Auth.TokenSecret == "" {
		return errors.New("HYDRO_AUTH_TOKEN_SECRET is required")
	}
	switch cfg.Auth.Mode {
	case AuthModeStatic:
	case AuthModeRemote:
		if cfg.Auth.IdentityURL == "" {
			return errors.New("HYDRO_AUTH_IDENTITY_URL is required when auth mode is remote")
		}
	default:
		return fmt.Errorf("invalid HYDRO_AUTH_MODE %q", cfg.Auth.Mode)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return errors.New("invalid HYDRO_AUTH_TOKEN_TTL")
	}
	if cfg.Collaborator.Timeout <= 0 {
		return errors.New("invalid HYDRO_COLLABORATOR_TIMEOUT")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New("invalid HYDRO_SERVER_SHUTDOWN_TIMEOUT")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("HYDRO_KAFKA_BROKERS is required when kafka is enabled")
		}
		if cfg.Kafka.AlertTopic == "" {
			return errors.New("HYDRO_KAFKA_ALERT_TOPIC is required when kafka is enabled")
		}
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid HYDRO_LOG_FORMAT %q", cfg.Log.Format)
	}
	return nil
}

// splitList flattens comma-separated entries and drops blanks
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
