package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ServiceUsers = "users-service"
	ServicePosts = "posts-service"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

var defaultPorts = map[string]string{
	ServiceUsers: "5001",
	ServicePosts: "5002",
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"postgres-service"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME" envDefault:"microservices_db"`
	User     string `env:"DB_USER" envDefault:"appuser"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

// ConnString renders the settings as a postgres:// URL accepted by both pgx and golang-migrate.
func (c DBConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

type Config struct {
	Service string
	Env     string `env:"ENV" envDefault:"prod"`
	Port    string `env:"PORT"`

	DB DBConfig

	EventConsumerType string `env:"EVENT_CONSUMER_TYPE" envDefault:"gochannel"`
	WALDir            string `env:"WAL_DIR" envDefault:"./wal"`
	RunMigrations     bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Posts service only.
	UsersServiceURL    string        `env:"USERS_SERVICE_URL" envDefault:"http://users-service:5001"`
	UserLookupTimeout  time.Duration `env:"USER_LOOKUP_TIMEOUT" envDefault:"5s"`
	UsersHealthTimeout time.Duration `env:"USERS_HEALTH_TIMEOUT" envDefault:"3s"`
}

// Load parses the process environment for the given service.
func Load(service string) (*Config, error) {
	return load(service, env.Options{})
}

// LoadFrom parses configuration from an explicit environment map instead of the process environment.
func LoadFrom(service string, environ map[string]string) (*Config, error) {
	return load(service, env.Options{Environment: environ})
}

func load(service string, opts env.Options) (*Config, error) {
	defaultPort, ok := defaultPorts[service]
	if !ok {
		return nil, fmt.Errorf("unknown service: %s", service)
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.Service = service
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	switch cfg.EventConsumerType {
	case "gochannel", "wal", "none":
	default:
		return nil, fmt.Errorf("unsupported event consumer type: %s", cfg.EventConsumerType)
	}

	if service == ServicePosts {
		if _, err := url.ParseRequestURI(cfg.UsersServiceURL); err != nil {
			return nil, fmt.Errorf("invalid USERS_SERVICE_URL: %w", err)
		}
	}

	return cfg, nil
}

// NewLogger returns a logger configured for the deployment environment.
func NewLogger(environment string, w io.Writer) *slog.Logger {
	switch environment {
	case EnvLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
