package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

// NewServer wraps the router in an http.Server listening on addr with the configured timeouts.
func NewServer(cfg *config.Config, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.App.ReadTimeout,
		WriteTimeout:      cfg.App.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
