package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"posbackend/internal/handlers"
	"posbackend/internal/middleware"
)

func newServeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

func runServe(parent context.Context, g *globals) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g.cfg, g.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if g.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(g.logger.Named("http")))
	handlers.Register(r, handlers.Deps{
		Store:                a.store,
		Syncer:               a.scheduler,
		Tester:               a.client,
		Metrics:              a.metrics.Handler(),
		Clock:                a.clock,
		Location:             a.location,
		Logger:               g.logger.Named("api"),
		JWTSecret:            g.cfg.JWTSecret,
		AuthDisabled:         g.cfg.AuthDisabled,
		OperatorPasswordHash: g.cfg.OperatorPasswordHash,
		AccessTokenTTL:       g.cfg.AccessTokenTTL,
	})
	if g.cfg.AuthDisabled {
		g.logger.Warn("AUTH_DISABLED is set, /api is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + g.cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return a.scheduler.Run(egCtx)
	})
	eg.Go(func() error {
		g.logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	g.logger.Info("shutdown complete")
	return err
}
