package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/k1networth/hello-pipeline/internal/shared/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "CONSUMER_CONFIG", "KAFKA_BROKERS", "KAFKA_GROUP_ID", "KAFKA_TOPIC",
		"KAFKA_PUBLISH_TOPIC", "KAFKA_START_OFFSET", "COMMIT_POLICY", "DATABASE_URL",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_POOL_SIZE",
		"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "METRICS_ADDR", "KAFKA_SESSION_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Topic != "hello-topic" {
		t.Fatalf("expected topic %q, got %q", "hello-topic", cfg.Topic)
	}
	if cfg.PublishGroupID() != "hello-consumer-publish" {
		t.Fatalf("expected publish group %q, got %q", "hello-consumer-publish", cfg.PublishGroupID())
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.CommitPolicy != config.CommitAfterHandle {
		t.Fatalf("expected commit policy %q, got %q", config.CommitAfterHandle, cfg.CommitPolicy)
	}
	if cfg.SessionTimeout != 6*time.Second {
		t.Fatalf("expected session timeout 6s, got %s", cfg.SessionTimeout)
	}
}

func TestLoadYAMLFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
kafka_broker: "kafka-1:9092"
group_id: "workers"
topic: "greetings"
publish_topic: "published"
database:
  host: "pg.internal"
  port: 5433
  user: "svc"
  password: "secret"
  dbname: "events"
  pool_size: 4
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_POOL_SIZE", "8")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.KafkaBrokers[0] != "kafka-1:9092" {
		t.Fatalf("expected broker from kafka_broker, got %v", cfg.KafkaBrokers)
	}
	if cfg.PublishGroupID() != "workers-publish" {
		t.Fatalf("expected %q, got %q", "workers-publish", cfg.PublishGroupID())
	}
	if cfg.Database.Host != "pg.internal" || cfg.Database.Port != 5433 {
		t.Fatalf("unexpected database settings %+v", cfg.Database)
	}
	if cfg.Database.PoolSize != 8 {
		t.Fatalf("expected env to override pool size to 8, got %d", cfg.Database.PoolSize)
	}
}

func TestLoadInlineJSON(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONSUMER_CONFIG", `{"kafka_broker":"b:9092","group_id":"g","topic":"t","publish_topic":"p"}`)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GroupID != "g" || cfg.Topic != "t" || cfg.PublishTopic != "p" {
		t.Fatalf("unexpected config %s", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMMIT_POLICY", "sometimes")
	t.Setenv("DB_POOL_SIZE", "0")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "commit policy") || !strings.Contains(err.Error(), "pool size") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestStringRedactsPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("DATABASE_URL", "postgres://svc:hunter2@db:5432/events")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s := cfg.String(); strings.Contains(s, "hunter2") {
		t.Fatalf("expected password to be redacted, got %s", s)
	}
}
