package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/jobstore/internal/api/handler"
	"github.com/cuongbtq/jobstore/internal/api/router"
	"github.com/cuongbtq/jobstore/internal/api/storage"
	"github.com/cuongbtq/jobstore/internal/config"
)

const defaultShutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load stored jobs and start the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, configPath, bootstrapOptions{
		validate: (*config.Config).ValidateServer,
		events:   true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.logStart("serve")

	if err := a.store.LoadJobs(ctx); err != nil {
		// rows named in the error can be deleted with DELETE /api/v1/jobs/:job_id,
		// then POST /api/v1/jobs/reload retries
		a.logger.Error("Failed to load stored jobs", slog.Any("error", err))
	}

	r := initRouter(a)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	a.logger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", a.cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", a.cfg.Server.WriteTimeout),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("Server failed to start", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	a.logger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(a *app) *gin.Engine {
	// Set Gin mode based on environment
	if a.cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	service := a.cfg.App.Name
	if service == "" {
		service = "jobstore"
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:  a.logger.Component("api"),
		Storage: storage.NewStorage(a.store),
		Service: service,
	})
}

