package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k1networth/hello-pipeline/internal/api"
	"github.com/k1networth/hello-pipeline/internal/shared/config"
	"github.com/k1networth/hello-pipeline/internal/shared/db"
	"github.com/k1networth/hello-pipeline/internal/shared/httpx"
	"github.com/k1networth/hello-pipeline/internal/shared/kafkax"
	"github.com/k1networth/hello-pipeline/internal/shared/logger"
	"github.com/k1networth/hello-pipeline/internal/store"
)

const appName = "api"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		return 1
	}
	defer func() { _ = pg.Close() }()

	st := store.New(pg)

	greetings := kafkax.NewProducer(kafkax.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.Topic, ClientID: appName})
	defer func() { _ = greetings.Close() }()
	published := kafkax.NewProducer(kafkax.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.PublishTopic, ClientID: appName})
	defer func() { _ = published.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := &api.Handler{
		Log:          log,
		Greetings:    greetings,
		Published:    published,
		Reader:       st,
		DefaultTopic: cfg.Topic,
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpx.NewRouter(log, httpx.RouterOptions{
			Metrics:        httpx.NewMetrics(reg),
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Ready:          st.Ping,
			Mount:          h.Routes,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("api_start",
		slog.String("topic", greetings.Topic()),
		slog.String("publish_topic", published.Topic()),
	)

	serveErr := httpx.Serve(log, srv)

	select {
	case <-ctx.Done():
		httpx.Shutdown(log, srv, 10*time.Second)
		return 0
	case <-serveErr:
		return 1
	}
}
