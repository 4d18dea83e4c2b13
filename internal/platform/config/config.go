package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	strs "screener/pkg/platform/strings"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string
	MaxBatchSize int
	LogLevel     string
	LogFormat    string
}

// Provider configures the OFAC API client. Zero values use the client's
// defaults.
type Provider struct {
	URL      string        `yaml:"-"`
	APIKey   string        `yaml:"-"`
	Timeout  time.Duration `yaml:"-"`
	MinScore int           `yaml:"min_score"`
	Sources  []string      `yaml:"sources"`
	Types    []string      `yaml:"types"`
}

// RedisConfig configures the verdict cache connection. An empty URL selects
// the in-memory cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoConfig configures the document store.
type MongoConfig struct {
	URI      string
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// ConnectionURI returns URI when set, otherwise builds one from the parts.
func (m MongoConfig) ConnectionURI() string {
	if m.URI != "" {
		return m.URI
	}
	u := url.URL{Scheme: "mongodb", Host: m.Host + ":" + m.Port}
	if m.Username != "" {
		u.User = url.UserPassword(m.Username, m.Password)
	}
	return u.String()
}

// PostgresConfig configures the relational store.
type PostgresConfig struct {
	URL string
}

// Store selects and configures the person store.
type Store struct {
	Backend  string
	Mongo    MongoConfig
	Postgres PostgresConfig
}

// Kafka configures screening event publishing. No brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Provider Provider
	Redis    RedisConfig
	CacheTTL time.Duration
	Store    Store
	Kafka    Kafka
}

// FromEnv builds a Config from environment variables so main stays lean. A
// .env file in the working directory is loaded first when present; variables
// already set in the environment win. SCREENER_CONFIG may name a YAML file
// overriding the provider request settings.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := Config{
		Server: Server{
			Addr:         getEnv("SCREENER_ADDR", ":8000"),
			MaxBatchSize: getInt("MAX_BATCH_SIZE", 100, &errs),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "json"),
		},
		Provider: Provider{
			URL:     getEnv("OFAC_API_URL", "https://api.ofac-api.com/v4/screen"),
			APIKey:  os.Getenv("OFAC_API_KEY"),
			Timeout: getDuration("OFAC_API_TIMEOUT", 10*time.Second, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		CacheTTL: getDuration("CACHE_TTL", time.Hour, &errs),
		Store: Store{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),
			Mongo: MongoConfig{
				URI:      os.Getenv("MONGO_URI"),
				Host:     getEnv("MONGO_HOST", "localhost"),
				Port:     getEnv("MONGO_PORT", "27017"),
				Username: os.Getenv("MONGO_INITDB_ROOT_USERNAME"),
				Password: os.Getenv("MONGO_INITDB_ROOT_PASSWORD"),
				Database: getEnv("MONGO_DATABASE", "sdn_screener"),
			},
			Postgres: PostgresConfig{URL: os.Getenv("DATABASE_URL")},
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_SCREENING_TOPIC", "screening-events"),
		},
	}

	if path := os.Getenv("SCREENER_CONFIG"); path != "" {
		if err := cfg.Provider.LoadFile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays min_score, sources and types from a YAML file. Keys
// absent from the file keep their current values.
func (p *Provider) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read provider config: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse provider config %s: %w", path, err)
	}
	p.Sources = strs.DedupeLower(p.Sources)
	p.Types = strs.DedupeLower(p.Types)
	return nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Provider.URL == "" {
		errs = append(errs, errors.New("OFAC_API_URL is required"))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("OFAC_API_KEY is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Server.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("MAX_BATCH_SIZE must be positive"))
	}
	switch c.Store.Backend {
	case BackendMongo, BackendMemory:
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_SCREENING_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
