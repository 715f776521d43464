package config

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
)

type Config struct {
	Env             string        `env:"APP_ENV"               envDefault:"dev"`
	HTTPAddr        string        `env:"HTTP_ADDR"             envDefault:"0.0.0.0:8000"`
	CorsOrigin      string        `env:"CORS_ORIGIN"           envDefault:"*"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"15s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT"  envDefault:"20s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
	MaxRequestBody  int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	DB   Database
	NATS NATS
}

// Database holds the connection target. Only the credentials are expected to
// come from the environment; the rest default to the compose setup.
type Database struct {
	Username        string        `env:"DB_USERNAME,required"`
	Password        string        `env:"DB_PASSWORD,required"`
	Host            string        `env:"DB_HOST"              envDefault:"db"`
	Port            int           `env:"DB_PORT"              envDefault:"5432"`
	Name            string        `env:"DB_NAME"              envDefault:"fastapi"`
	SSLMode         string        `env:"DB_SSLMODE"           envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS"         envDefault:"25"`
	MinConns        int32         `env:"DB_MIN_CONNS"         envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"45m"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE"     envDefault:"5m"`
}

type NATS struct {
	URL     string `env:"NATS_URL"     envDefault:"nats://localhost:4222"`
	Subject string `env:"NATS_SUBJECT" envDefault:"characters"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return errors.Errorf("DB_PORT must be in 1..65535, got %d", c.DB.Port)
	}
	if c.MaxRequestBody <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.NATS.Subject == "" {
		return errors.New("NATS_SUBJECT must not be empty")
	}
	return nil
}

// URL renders the pgx connection string. Credentials are escaped.
func (d Database) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.Username, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
