package serve

import (
	"context"
	"geohost/internal/app"
	"geohost/internal/config"
	"geohost/internal/httphandlers"
	"geohost/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func NewServeCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ListenAddr, "addr", "a", cfg.ListenAddr, "address to listen on")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	if cfg.HasObjectStorage() {
		if err := a.Archive.Ping(ctx); err != nil {
			logger.Warn("webhook archive is not reachable", zap.Error(err))
		}
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}
	defer func() {
		if err := a.Scheduler.Shutdown(); err != nil {
			logger.Error("scheduler shutdown failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandlers.Routes(httphandlers.NewApiHandler(a.Manager, a.Bus)),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end with the process instead of holding up Shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving http(s)", zap.String("addr", cfg.ListenAddr), zap.Bool("tls", cfg.HasTLSConfig()))
		if cfg.HasTLSConfig() {
			serveErr <- srv.ListenAndServeTLS(cfg.ServerSSLCertFile, cfg.ServerSSLKeyFile)
		} else {
			serveErr <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server closed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	return nil
}
