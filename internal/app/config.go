package app

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

const envPrefix = "ATTENDO_"

type Config struct {
	Server struct {
		Port       string `toml:"port" env:"PORT"`
		EnableAuth bool   `toml:"enable_auth" env:"ENABLE_AUTH"`
		// PublicURL is where the provider sends the browser back to.
		PublicURL string `toml:"public_url" env:"PUBLIC_URL"`
	} `toml:"server" envPrefix:"SERVER_"`

	Gateway struct {
		URL     string `toml:"url" env:"URL"`
		APIKey  string `toml:"api_key" env:"API_KEY"`
		DSN     string `toml:"dsn" env:"DSN"`
		Timeout string `toml:"timeout" env:"TIMEOUT"`
	} `toml:"gateway" envPrefix:"GATEWAY_"`

	Auth struct {
		Provider   string `toml:"provider" env:"PROVIDER"`
		RedisURL   string `toml:"redis_url" env:"REDIS_URL"`
		Channel    string `toml:"channel" env:"CHANNEL"`
		SessionKey string `toml:"session_key" env:"SESSION_KEY"`
	} `toml:"auth" envPrefix:"AUTH_"`

	Database struct {
		// MigrationsDir replaces the embedded migrations when set.
		MigrationsDir  string `toml:"migrations_dir" env:"MIGRATIONS_DIR"`
		SkipMigrations bool   `toml:"skip_migrations" env:"SKIP_MIGRATIONS"`
	} `toml:"database" envPrefix:"DATABASE_"`

	Display struct {
		PrettyJSON bool `toml:"pretty_json" env:"PRETTY_JSON"`
	} `toml:"display" envPrefix:"DISPLAY_"`
}

func (c *Config) GatewayTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gateway.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Config) applyDefaults() {
	if c.Auth.Provider == "" {
		c.Auth.Provider = "github"
	}
	if c.Auth.Channel == "" {
		c.Auth.Channel = "attendo:auth"
	}
	if c.Auth.SessionKey == "" {
		c.Auth.SessionKey = "attendo:session"
	}
	if c.Gateway.Timeout == "" {
		c.Gateway.Timeout = "10s"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("Server port is not specified in config, use a value like :8080")
	}
	if c.Gateway.DSN == "" && (c.Gateway.URL == "" || c.Gateway.APIKey == "") {
		return fmt.Errorf("either gateway.url with gateway.api_key or gateway.dsn must be set")
	}
	if c.Server.EnableAuth && (c.Gateway.URL == "" || c.Gateway.APIKey == "") {
		return fmt.Errorf("server.enable_auth needs gateway.url and gateway.api_key for sign-in")
	}
	if _, err := time.ParseDuration(c.Gateway.Timeout); err != nil {
		return fmt.Errorf("invalid gateway.timeout %q: %w", c.Gateway.Timeout, err)
	}
	return nil
}

// LoadConfig reads the TOML file at path, then lets ATTENDO_* environment
// variables override it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("error reading environment overrides: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded config: port=%s auth=%t gateway_url=%q dsn_set=%t",
		config.Server.Port,
		config.Server.EnableAuth,
		config.Gateway.URL,
		config.Gateway.DSN != "",
	)

	return &config, nil
}
