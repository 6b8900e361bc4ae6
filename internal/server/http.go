package server

import (
	"context"
	"net/http"
	"time"

	"cryptoPortfolioBot/internal/common"
)

func NewHTTPMux(webhook http.HandlerFunc, api *API) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/telegram/webhook", webhook)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	if api != nil {
		mux.HandleFunc("GET /api/portfolio", api.handlePortfolio)
		mux.HandleFunc("GET /api/portfolio/chart.png", api.handleChart)
	}
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *common.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info().Str("addr", addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
