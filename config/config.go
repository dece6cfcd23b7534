package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	JWT           JWTConfig           `yaml:"jwt"`
	HTTP          HTTPConfig          `yaml:"http"`
	Bingo         BingoConfig         `yaml:"bingo"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
	// NKeySeed is an optional user nkey seed used to authenticate the connection.
	NKeySeed string `yaml:"nkey_seed"`
}

// JWTConfig holds the settings used to verify player tokens issued by the
// platform auth service.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// HTTPConfig holds the HTTP/WebSocket listener configuration.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// BingoConfig holds room behaviour tunables.
type BingoConfig struct {
	AutoCallInterval   time.Duration `yaml:"auto_call_interval"`
	ManualCallCooldown time.Duration `yaml:"manual_call_cooldown"`
	// AutoCallForceAfter forces auto-call on when the host has not drawn for
	// this long during a game. Zero disables the policy.
	AutoCallForceAfter time.Duration `yaml:"auto_call_force_after"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	IdleRoomTTL        time.Duration `yaml:"idle_room_ttl"`
	SubscriberBuffer   int           `yaml:"subscriber_buffer"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnvOverrides lets deployment env vars win over the YAML file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_NKEY_SEED"); v != "" {
		cfg.NATS.NKeySeed = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RATE_LIMIT value: %w", err)
		}
		cfg.HTTP.RateLimit = f
	}
	if v := os.Getenv("HTTP_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RATE_BURST value: %w", err)
		}
		cfg.HTTP.RateBurst = n
	}

	durations := map[string]*time.Duration{
		"BINGO_AUTO_CALL_INTERVAL":    &cfg.Bingo.AutoCallInterval,
		"BINGO_MANUAL_CALL_COOLDOWN":  &cfg.Bingo.ManualCallCooldown,
		"BINGO_AUTO_CALL_FORCE_AFTER": &cfg.Bingo.AutoCallForceAfter,
		"BINGO_REQUEST_TIMEOUT":       &cfg.Bingo.RequestTimeout,
		"BINGO_IDLE_ROOM_TTL":         &cfg.Bingo.IdleRoomTTL,
	}
	for key, target := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*target = d
	}
	if v := os.Getenv("BINGO_SUBSCRIBER_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BINGO_SUBSCRIBER_BUFFER value: %w", err)
		}
		cfg.Bingo.SubscriberBuffer = n
	}

	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	return nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg.NATS.URL = os.Getenv("NATS_URL")
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":3000"
	}
	if c.HTTP.RateLimit <= 0 {
		c.HTTP.RateLimit = 10
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = 20
	}
	if c.Bingo.AutoCallInterval <= 0 {
		c.Bingo.AutoCallInterval = 5 * time.Second
	}
	if c.Bingo.ManualCallCooldown <= 0 {
		c.Bingo.ManualCallCooldown = 2 * time.Second
	}
	if c.Bingo.RequestTimeout <= 0 {
		c.Bingo.RequestTimeout = 5 * time.Second
	}
	if c.Bingo.IdleRoomTTL <= 0 {
		c.Bingo.IdleRoomTTL = 6 * time.Hour
	}
	if c.Bingo.SubscriberBuffer <= 0 {
		c.Bingo.SubscriberBuffer = 64
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "mundo-bingo"
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "development"
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
