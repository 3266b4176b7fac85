package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

// RouterOptions configures the ops endpoints and the application routes
// served next to them. Every field is optional.
type RouterOptions struct {
	// Metrics instruments every request except /metrics.
	Metrics *Metrics
	// MetricsHandler serves /metrics, usually promhttp.HandlerFor(reg, ...).
	MetricsHandler http.Handler
	// Ready is called by /readyz; a non-nil error answers 503.
	Ready func(ctx context.Context) error
	// Mount registers application routes.
	Mount func(mux *http.ServeMux)
}

func NewRouter(log *slog.Logger, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", WithRoute("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})))

	mux.Handle("GET /readyz", WithRoute("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				log.Warn("readyz_failed", slog.String("err", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})))

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	if opts.Mount != nil {
		opts.Mount(mux)
	}

	var h http.Handler = mux
	if opts.Metrics != nil {
		h = opts.Metrics.Middleware(h)
	}
	h = AccessLog(log)(h)
	h = RequestID(h)

	return h
}
