package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the storefront views over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe blocks until ctx is cancelled, normally by SIGINT or SIGTERM
func runServe(ctx context.Context) error {
	return withRuntime(ctx, func(rt *runtime) error {
		logger := rt.logger
		logger.Info("Starting storefront server", zap.String("catalog_mode", string(rt.app.Catalog().Mode())))

		if rt.cfg.Server.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		router := gin.New()
		handler := api.NewHandler(rt.app, rt.cfg.Server.AllowedOrigins)
		handler.SetupRoutes(router)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%s", rt.cfg.Server.Port),
			Handler: router,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", zap.String("port", rt.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server forced to shutdown", zap.Error(err))
		}

		logger.Info("Server exited")
		return nil
	})
}
