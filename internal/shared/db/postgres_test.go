package db_test

import (
	"context"
	"strings"
	"testing"

	"github.com/k1networth/hello-pipeline/internal/shared/db"
)

func TestDSNFromFields(t *testing.T) {
	cfg := db.PostgresConfig{Host: "pg", Port: 5433, User: "svc", Password: "p@ss", DBName: "events"}

	dsn, err := cfg.DSN()
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	want := "postgres://svc:p%40ss@pg:5433/events?sslmode=disable"
	if dsn != want {
		t.Fatalf("expected %q, got %q", want, dsn)
	}
}

func TestDSNPrefersURL(t *testing.T) {
	cfg := db.PostgresConfig{DatabaseURL: "postgres://x@y/z", Host: "ignored"}

	dsn, err := cfg.DSN()
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if dsn != "postgres://x@y/z" {
		t.Fatalf("expected url to win, got %q", dsn)
	}
}

func TestOpenPostgresRequiresHost(t *testing.T) {
	_, err := db.OpenPostgres(context.Background(), db.PostgresConfig{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "host") {
		t.Fatalf("expected host error, got %v", err)
	}
}
