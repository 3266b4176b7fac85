package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Serve runs srv in the background. Listen errors other than a clean close
// are logged and reported on the returned channel.
func Serve(log *slog.Logger, srv *http.Server) <-chan error {
	errc := make(chan error, 1)
	go func() {
		log.Info("http_listen", slog.String("addr", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown gives srv up to timeout to drain in-flight requests.
func Shutdown(log *slog.Logger, srv *http.Server, timeout time.Duration) {
	log.Info("shutdown_start", slog.String("addr", srv.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
	}

	log.Info("shutdown_done", slog.String("addr", srv.Addr))
}
