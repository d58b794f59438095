// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	AppName         string
	Port            string
	ShutdownTimeout time.Duration
	StorageDir      string
	MaxUploadSize   int64
	CORSOrigins     string

	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Log      LogConfig
	Chat     ChatConfig
	WS       WSConfig
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string // sqlite, postgres or mysql
	DSN    string
	Debug  bool
}

// JWTConfig configures token issuance and validation.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// RedisConfig configures the presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceKey string
}

// AMQPConfig configures the event relay. An empty URL disables it.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string
	Format string // console or json
	File   string
}

// ChatConfig tunes the message pipeline.
type ChatConfig struct {
	PersistTimeout time.Duration
	HistoryLimit   int
	MaxHistory     int
}

// WSConfig tunes the live-connection surface.
type WSConfig struct {
	Rate  float64
	Burst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "realtime-chat")
	v.SetDefault("PORT", "3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("STORAGE_DIR", "./data/jetstream")
	v.SetDefault("MAX_UPLOAD_SIZE", 10*1024*1024)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "chat.db")
	v.SetDefault("DB_DEBUG", false)

	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("JWT_ISSUER", "realtime-chat")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRESENCE_KEY", "chat:presence:online")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "chat.events")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("PERSIST_TIMEOUT", "5s")
	v.SetDefault("HISTORY_LIMIT", 50)
	v.SetDefault("MAX_HISTORY", 1000)

	v.SetDefault("WS_RATE", 10)
	v.SetDefault("WS_BURST", 20)
}

// Load reads configuration from path (usually ".env") and the environment.
// A missing file is not an error; environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		AppName:         v.GetString("APP_NAME"),
		Port:            v.GetString("PORT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		StorageDir:      v.GetString("STORAGE_DIR"),
		MaxUploadSize:   v.GetInt64("MAX_UPLOAD_SIZE"),
		CORSOrigins:     v.GetString("CORS_ALLOWED_ORIGINS"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
			Debug:  v.GetBool("DB_DEBUG"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PresenceKey: v.GetString("PRESENCE_KEY"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
			File:   v.GetString("LOG_FILE"),
		},
		Chat: ChatConfig{
			PersistTimeout: v.GetDuration("PERSIST_TIMEOUT"),
			HistoryLimit:   v.GetInt("HISTORY_LIMIT"),
			MaxHistory:     v.GetInt("MAX_HISTORY"),
		},
		WS: WSConfig{
			Rate:  v.GetFloat64("WS_RATE"),
			Burst: v.GetInt("WS_BURST"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.Chat.PersistTimeout <= 0 {
		return errors.New("PERSIST_TIMEOUT must be positive")
	}
	if c.Chat.HistoryLimit <= 0 || c.Chat.HistoryLimit > c.Chat.MaxHistory {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and %d", c.Chat.MaxHistory)
	}
	if c.WS.Rate <= 0 || c.WS.Burst <= 0 {
		return errors.New("WS_RATE and WS_BURST must be positive")
	}
	return nil
}
