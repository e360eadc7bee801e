package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pimsync/backend/internal/interfaces/http/handler"
	"github.com/pimsync/backend/internal/interfaces/http/middleware"
	"github.com/pimsync/backend/internal/interfaces/http/router"
)

// ServeCmd starts the HTTP API
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync HTTP API",
	Long: `Start the sync HTTP API.

Endpoints:
  GET  /health                  dependency health
  POST /api/v1/sync/runs        start a run and wait for its summary
  GET  /api/v1/sync/runs        recent runs
  GET  /api/v1/sync/runs/:id    one run
  GET  /api/v1/sync/options     projection options
  PUT  /api/v1/sync/options     replace projection options`,
	RunE: runServe,
}

var (
	serveRunsPerMinuteFlag float64
	serveShutdownFlag      time.Duration
)

func init() {
	ServeCmd.Flags().Float64Var(&serveRunsPerMinuteFlag, "runs-per-minute", 6, "Maximum runs started per minute through the API")
	ServeCmd.Flags().DurationVar(&serveShutdownFlag, "shutdown-timeout", 30*time.Second, "Grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine := router.NewEngine(router.EngineConfig{ServiceName: a.cfg.App.Name, Tracing: true}, a.log)
	limiter := rate.NewLimiter(rate.Limit(serveRunsPerMinuteFlag/60), 1)
	router.NewRouter(engine).
		RegisterRoot(handler.NewHealthHandler(Version, a.healthChecks()...)).
		Register(handler.NewSyncHandler(a.service, middleware.RateLimit(limiter))).
		Setup()

	srv := &http.Server{
		Addr:              ":" + a.cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownFlag)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("Server exited gracefully")
	return nil
}
