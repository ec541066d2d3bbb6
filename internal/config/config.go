package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
	SinkNone     = "none"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chat_db"`

	// Where relayed messages are stored: a Redis stream drained into
	// Postgres, Postgres directly, or nowhere.
	SinkBackend   string        `env:"SINK_BACKEND"    envDefault:"redis" validate:"oneof=redis postgres none"`
	SinkQueueSize int           `env:"SINK_QUEUE_SIZE" envDefault:"1024"  validate:"min=1"`
	SinkWorkers   int           `env:"SINK_WORKERS"    envDefault:"1"     validate:"min=1,max=64"`
	SinkTimeout   time.Duration `env:"SINK_TIMEOUT"    envDefault:"5s"    validate:"gt=0"`

	// Empty disables token checks; the join payload's username is trusted.
	JwtSecret string `env:"JWT_SECRET"`

	LastSeenInterval time.Duration `env:"LAST_SEEN_INTERVAL" envDefault:"10s" validate:"gt=0"`
	WsReadLimit      int64         `env:"WS_READ_LIMIT"      envDefault:"4096" validate:"min=256"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"3000" validate:"min=1000,max=65535"`
}

// UsesPostgres reports whether any component needs the database.
func (c *Config) UsesPostgres() bool { return c.SinkBackend != SinkNone }

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	// Parse config from environment variables
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
