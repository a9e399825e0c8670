package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name     string `envconfig:"APP_NAME" default:"Tally"`
		Port     int    `envconfig:"PORT" default:"8080"`
		Currency string `envconfig:"APP_CURRENCY" default:"EUR"`
		// Storage selects the TUI backend: "postgres" or "memory".
		Storage  string `envconfig:"APP_STORAGE" default:"postgres"`
	}

	DB struct {
		Host            string        `envconfig:"DB_HOST" default:"localhost"`
		Port            int           `envconfig:"DB_PORT" default:"5432"`
		User            string        `envconfig:"DB_USER" default:"postgres"`
		Password        string        `envconfig:"DB_PASSWORD" default:""`
		Name            string        `envconfig:"DB_NAME" default:"tally"`
		MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
		MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
		ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	}

	Duplicate struct {
		Threshold       float64         `envconfig:"DUPLICATE_THRESHOLD" default:"0.80"`
		DateWindow      int             `envconfig:"DUPLICATE_DATE_WINDOW" default:"3"`
		AmountTolerance decimal.Decimal `envconfig:"DUPLICATE_AMOUNT_TOLERANCE" default:"1.00"`
		Workers         int             `envconfig:"DUPLICATE_WORKERS" default:"0"`
	}

	Import struct {
		ChunkSize int   `envconfig:"IMPORT_CHUNK_SIZE" default:"200"`
		MaxUpload int64 `envconfig:"IMPORT_MAX_UPLOAD_BYTES" default:"10485760"`
	}

	Locks struct {
		AcquireTimeout time.Duration `envconfig:"LOCK_ACQUIRE_TIMEOUT" default:"5s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
