package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"farm-console/internal/api"
	"farm-console/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the backend and serve the real-time view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := services.New(ctx, cfg, logger)
			if err != nil {
				logger.Errorf("Failed to start services: %v", err)
				return err
			}
			var wg sync.WaitGroup
			svc.Start(&wg)

			gin.SetMode(gin.ReleaseMode)
			gin.DefaultWriter = logger.Writer()
			srv := &http.Server{
				Addr:              cfg.API.Addr,
				Handler:           api.NewRouter(svc, logger, cfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Infof("Starting API server on %s", cfg.API.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
				logger.Infof("Shutting down")
			case err = <-serveErr:
				logger.Errorf("API server failed: %v", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("API server shutdown failed: %v", err)
			}
			svc.Stop()
			wg.Wait()
			return err
		},
	}
}
