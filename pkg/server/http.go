// Package server builds the HTTP and gRPC servers used by the inventory binary.
package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/abgdnv/stockroom/pkg/config"
	"github.com/abgdnv/stockroom/pkg/web"
	"github.com/go-chi/chi/v5"
)

// NewHTTPServer binds handler to host:port with the configured limits.
// An empty host listens on every interface.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Timeout.Read,
		WriteTimeout:      cfg.Timeout.Write,
		IdleTimeout:       cfg.Timeout.Idle,
		ReadHeaderTimeout: cfg.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// NewChiRouter returns a router whose middleware chain tags each request with an ID,
// counts it, logs it and turns panics into 500 responses.
func NewChiRouter(logger *slog.Logger) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(web.RequestIDInjector, web.Metrics, web.StructuredLogger(logger), web.Recoverer(logger))
	return mux
}
