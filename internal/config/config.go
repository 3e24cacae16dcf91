package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret            string        `envconfig:"JWT_SECRET"`
	AuthDisabled         bool          `envconfig:"AUTH_DISABLED" default:"false"`
	OperatorPasswordHash string        `envconfig:"OPERATOR_PASSWORD_HASH"`
	AccessTokenTTL       time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"12h"`

	RemoteBaseURL string        `envconfig:"REMOTE_BASE_URL" default:"https://api.hemenyolda.com/v1"`
	RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"20s"`
	RemotePerPage int           `envconfig:"REMOTE_PER_PAGE" default:"50"`
	StrictSource  bool          `envconfig:"STRICT_SOURCE" default:"false"`
	SyncInterval  time.Duration `envconfig:"SYNC_INTERVAL" default:"15s"`

	PersistBackend string `envconfig:"PERSIST_BACKEND" default:"pebble"`
	PebbleDir      string `envconfig:"PEBBLE_DIR" default:"data/state"`
	MongoURI       string `envconfig:"MONGO_URI"`
	DBName         string `envconfig:"DB_NAME" default:"posbackend"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"pos.orders"`

	Timezone string `envconfig:"TIMEZONE" default:"Europe/Istanbul"`
	NodeID   int64  `envconfig:"NODE_ID" default:"1"`
}

const (
	BackendPebble = "pebble"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	cfg.PersistBackend = strings.ToLower(strings.TrimSpace(cfg.PersistBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.PersistBackend {
	case BackendPebble, BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when PERSIST_BACKEND=mongo")
		}
	default:
		return errors.Errorf("unknown PERSIST_BACKEND %q", c.PersistBackend)
	}
	if c.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}
	if c.JWTSecret == "" && !c.AuthDisabled {
		return errors.New("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if c.JWTSecret != "" && c.OperatorPasswordHash == "" {
		return errors.New("OPERATOR_PASSWORD_HASH is required when JWT_SECRET is set")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.New("NODE_ID must be between 0 and 1023")
	}
	return nil
}

// Location resolves Timezone. On error the local zone is returned alongside
// the error so callers can log and carry on.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, errors.Wrapf(err, "unknown TIMEZONE %q", c.Timezone)
	}
	return loc, nil
}

// KafkaEnabled reports whether lifecycle events should be published.
func (c Config) KafkaEnabled() bool {
	return strings.TrimSpace(c.KafkaBrokers) != ""
}
