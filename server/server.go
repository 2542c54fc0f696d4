package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cnosuke/link-preview/auth"
	"github.com/cnosuke/link-preview/config"
	"github.com/cnosuke/link-preview/preview"
	"github.com/cnosuke/link-preview/scraper"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// NewPreviewService builds the preview service and its HTTP scraper from cfg.
func NewPreviewService(cfg *config.Config) (*preview.Service, error) {
	zap.S().Debugw("creating HTTP scraper")
	s, err := scraper.NewHTTPScraper(&scraper.Config{
		Timeout:      cfg.PreviewTimeout(),
		UserAgent:    cfg.Preview.UserAgent,
		MaxBodyBytes: cfg.Preview.MaxBodyBytes,
		MaxRedirects: cfg.Preview.MaxRedirects,
	})
	if err != nil {
		zap.S().Errorw("failed to create HTTP scraper", "error", err)
		return nil, err
	}
	return preview.NewService(s, cfg.PreviewTimeout()), nil
}

// NewAuthProvider returns nil when Google sign-in is not configured.
func NewAuthProvider(cfg *config.Config) (auth.Provider, error) {
	if !cfg.AuthEnabled() {
		zap.S().Infow("Google sign-in not configured, auth routes limited to /auth/session")
		return nil, nil
	}
	p, err := auth.NewGoogleProvider(&auth.GoogleConfig{
		ClientID:      cfg.Auth.GoogleClientID,
		ClientSecret:  cfg.Auth.GoogleClientSecret,
		Secret:        cfg.Auth.Secret,
		TrustHost:     cfg.Auth.TrustHost,
		BaseURL:       cfg.Auth.BaseURL,
		SessionMaxAge: cfg.SessionMaxAge(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google auth provider")
	}
	return p, nil
}

// Run - Serve the HTTP API until SIGINT or SIGTERM
func Run(cfg *config.Config, name string, version string) error {
	zap.S().Infow("starting link preview HTTP server", "name", name, "version", version)

	gin.SetMode(cfg.Server.Mode)

	svc, err := NewPreviewService(cfg)
	if err != nil {
		return err
	}
	authProvider, err := NewAuthProvider(cfg)
	if err != nil {
		zap.S().Errorw("failed to create auth provider", "error", err)
		return err
	}

	router := NewRouter(svc, RouterOptions{
		AllowOrigins: cfg.Server.AllowOrigins,
		Auth:         authProvider,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zap.S().Errorw("failed to start server", "error", err)
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	case <-ctx.Done():
	}

	zap.S().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	return nil
}
