package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k1networth/hello-pipeline/internal/pipeline"
	"github.com/k1networth/hello-pipeline/internal/shared/config"
	"github.com/k1networth/hello-pipeline/internal/shared/db"
	"github.com/k1networth/hello-pipeline/internal/shared/env"
	"github.com/k1networth/hello-pipeline/internal/shared/httpx"
	"github.com/k1networth/hello-pipeline/internal/shared/kafkax"
	"github.com/k1networth/hello-pipeline/internal/shared/logger"
	"github.com/k1networth/hello-pipeline/internal/store"
	"github.com/k1networth/hello-pipeline/migrations"
)

const appName = "consumer"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.New(appName, "", "").Error("config_error", slog.String("err", err.Error()))
		return 2
	}
	log := logger.New(appName, cfg.AppEnv, cfg.LogLevel)
	log.Info("config_loaded", slog.String("config", cfg.String()))

	commitPolicy, err := pipeline.ParseCommitPolicy(cfg.CommitPolicy)
	if err != nil {
		log.Error("config_error", slog.String("err", err.Error()))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := openDatabase(ctx, log, cfg)
	if err != nil {
		return 1
	}
	defer func() { _ = pg.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(pg, "hello"),
	)
	metrics := pipeline.NewMetrics(reg)

	st := store.New(pg)

	defaultSrc := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    cfg.StartOffset,
		SessionTimeout: cfg.SessionTimeout,
	})
	publishSrc := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.PublishTopic,
		GroupID:        cfg.PublishGroupID(),
		StartOffset:    cfg.StartOffset,
		SessionTimeout: cfg.SessionTimeout,
	})

	worker := &pipeline.Worker{
		Default: defaultSrc,
		Publish: publishSrc,
		Handler: &pipeline.Handler{
			Store:   st,
			Log:     log,
			Policy:  pipeline.DefaultPolicy,
			Metrics: metrics,
		},
		Log:          log,
		Metrics:      metrics,
		CommitPolicy: commitPolicy,
	}

	ops := &http.Server{
		Addr: cfg.MetricsAddr,
		Handler: httpx.NewRouter(log, httpx.RouterOptions{
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Ready:          st.Ping,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpx.Serve(log, ops)

	log.Info("consumer_start",
		slog.String("topic", defaultSrc.Topic()),
		slog.String("group_id", defaultSrc.GroupID()),
		slog.String("publish_topic", publishSrc.Topic()),
		slog.String("publish_group_id", publishSrc.GroupID()),
	)

	runErr := worker.Run(ctx)
	httpx.Shutdown(log, ops, 5*time.Second)

	if runErr != nil {
		log.Error("consumer_failed", slog.String("err", runErr.Error()))
		return 1
	}
	return 0
}

// openDatabase connects, optionally applies migrations and checks that both
// tables exist. Failures are logged here.
func openDatabase(ctx context.Context, log *slog.Logger, cfg config.Config) (*sql.DB, error) {
	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{
		DatabaseURL:  cfg.Database.URL,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		DBName:       cfg.Database.DBName,
		MaxOpenConns: cfg.Database.PoolSize,
	})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		return nil, err
	}

	if version, err := db.ServerVersion(ctx, pg); err != nil {
		log.Warn("db_version_failed", slog.String("err", err.Error()))
	} else {
		log.Info("db_connected", slog.String("version", version))
	}

	if env.Bool("DB_AUTO_MIGRATE", false) {
		if err := migrations.Up(ctx, pg); err != nil {
			log.Error("db_migrate_failed", slog.String("err", err.Error()))
			_ = pg.Close()
			return nil, err
		}
		log.Info("db_migrated")
	}

	if err := db.VerifySchema(ctx, pg, store.TableMessages, store.TablePublishedData); err != nil {
		log.Error("db_schema_invalid", slog.String("err", err.Error()))
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}
