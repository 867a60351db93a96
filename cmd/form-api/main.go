// cmd/form-api/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formflow/internal/bootstrap"
	"formflow/internal/common/config"
	"formflow/internal/common/logger"
	"formflow/internal/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": "form-api"})

	if cfg.Auth.JWTSecret == "" {
		log.Error("auth.jwt_secret is required", nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("dependency initialization failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer services.Close()

	checks := map[string]httpapi.HealthCheck{}
	for name, check := range services.HealthChecks() {
		checks[name] = check
	}

	router := httpapi.NewRouter(httpapi.RouterOptions{
		JWTSecret:    cfg.Auth.JWTSecret,
		Logger:       log,
		Submissions:  httpapi.NewSubmissionHandler(services.Pipeline, cfg.HTTP.MaxUploadBytes),
		Forms:        httpapi.NewFormHandler(services.Forms),
		HealthChecks: checks,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout:      config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, draining requests...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during HTTP shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Form API stopped gracefully", nil)
}
