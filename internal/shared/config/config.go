package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/k1networth/hello-pipeline/internal/shared/env"
)

// PublishGroupSuffix is appended to the configured group id for the publish
// topic subscription so both subscriptions keep independent offsets.
const PublishGroupSuffix = "-publish"

const (
	CommitAfterHandle = "after_handle"
	CommitOnSuccess   = "on_success"
)

var ErrInvalid = errors.New("invalid config")

type Database struct {
	URL      string `yaml:"url" json:"url"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	DBName   string `yaml:"dbname" json:"dbname"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type Config struct {
	AppEnv      string `yaml:"app_env" json:"app_env"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	HTTPAddr    string `yaml:"http_addr" json:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`

	// KafkaBroker is the single-address form used by older config files.
	KafkaBroker  string   `yaml:"kafka_broker" json:"kafka_broker"`
	KafkaBrokers []string `yaml:"kafka_brokers" json:"kafka_brokers"`
	GroupID      string   `yaml:"group_id" json:"group_id"`
	Topic        string   `yaml:"topic" json:"topic"`
	PublishTopic string   `yaml:"publish_topic" json:"publish_topic"`
	StartOffset  string   `yaml:"start_offset" json:"start_offset"`
	CommitPolicy string   `yaml:"commit_policy" json:"commit_policy"`

	// SessionTimeout is read from KAFKA_SESSION_TIMEOUT only.
	SessionTimeout time.Duration `yaml:"-" json:"-"`

	Database Database `yaml:"database" json:"database"`
}

func defaults() Config {
	return Config{
		AppEnv:       "dev",
		LogLevel:     "info",
		HTTPAddr:     ":8080",
		MetricsAddr:  ":9091",
		GroupID:      "hello-consumer",
		Topic:        "hello-topic",
		PublishTopic: "publish-topic",
		StartOffset:  "first",
		CommitPolicy: CommitAfterHandle,

		SessionTimeout: 6 * time.Second,
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "hello",
			PoolSize: 10,
		},
	}
}

// Load builds the process configuration. Later layers override earlier ones:
// defaults, then CONFIG_FILE or inline CONSUMER_CONFIG, then environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	cfg := defaults()

	if path := env.String("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	} else if inline := env.String("CONSUMER_CONFIG", ""); inline != "" {
		if err := decodeJSON([]byte(inline), &cfg); err != nil {
			return Config{}, fmt.Errorf("CONSUMER_CONFIG: %w", err)
		}
	}

	applyEnv(&cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = env.String("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = env.String("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPAddr = env.String("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = env.String("METRICS_ADDR", cfg.MetricsAddr)

	cfg.KafkaBrokers = env.StringsCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.GroupID = env.String("KAFKA_GROUP_ID", cfg.GroupID)
	cfg.Topic = env.String("KAFKA_TOPIC", cfg.Topic)
	cfg.PublishTopic = env.String("KAFKA_PUBLISH_TOPIC", cfg.PublishTopic)
	cfg.StartOffset = env.String("KAFKA_START_OFFSET", cfg.StartOffset)
	cfg.CommitPolicy = env.String("COMMIT_POLICY", cfg.CommitPolicy)
	cfg.SessionTimeout = env.Duration("KAFKA_SESSION_TIMEOUT", cfg.SessionTimeout)

	cfg.Database.URL = env.String("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = env.String("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = env.Int("DB_PORT", cfg.Database.Port)
	cfg.Database.User = env.String("DB_USER", cfg.Database.User)
	cfg.Database.Password = env.String("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = env.String("DB_NAME", cfg.Database.DBName)
	cfg.Database.PoolSize = env.Int("DB_POOL_SIZE", cfg.Database.PoolSize)
}

func (c *Config) normalize() {
	if c.KafkaBroker != "" {
		c.KafkaBrokers = append(env.SplitCSV(c.KafkaBroker), c.KafkaBrokers...)
		c.KafkaBroker = ""
	}
	if len(c.KafkaBrokers) == 0 {
		c.KafkaBrokers = []string{"localhost:9092"}
	}
	c.CommitPolicy = strings.ToLower(strings.TrimSpace(c.CommitPolicy))
	c.StartOffset = strings.ToLower(strings.TrimSpace(c.StartOffset))
}

// PublishGroupID is the consumer group used for the publish topic.
func (c Config) PublishGroupID() string {
	return c.GroupID + PublishGroupSuffix
}

func (c Config) Validate() error {
	var errs []error

	if c.GroupID == "" {
		errs = append(errs, errors.New("kafka: group id is required"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("kafka: topic is required"))
	}
	if c.PublishTopic == "" {
		errs = append(errs, errors.New("kafka: publish topic is required"))
	}
	if c.Topic != "" && c.Topic == c.PublishTopic {
		errs = append(errs, errors.New("kafka: topic and publish topic must differ"))
	}
	switch c.StartOffset {
	case "", "first", "last":
	default:
		errs = append(errs, fmt.Errorf("kafka: unknown start offset %q", c.StartOffset))
	}
	switch c.CommitPolicy {
	case CommitAfterHandle, CommitOnSuccess:
	default:
		errs = append(errs, fmt.Errorf("commit policy: unknown value %q", c.CommitPolicy))
	}

	if c.Database.URL == "" {
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database: host is required"))
		}
		if c.Database.DBName == "" {
			errs = append(errs, errors.New("database: dbname is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Errorf("database: invalid port %d", c.Database.Port))
		}
	}
	if c.Database.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("database: pool size must be positive, got %d", c.Database.PoolSize))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (c Config) String() string {
	cp := c
	if cp.Database.Password != "" {
		cp.Database.Password = "***REDACTED***"
	}
	if cp.Database.URL != "" {
		cp.Database.URL = redactURLCredentials(cp.Database.URL)
	}
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(cp))
}

func redactURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "***REDACTED_URL***"
	}
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), "***REDACTED***")
		}
	}
	return parsed.String()
}
