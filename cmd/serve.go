package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"library-api/config"
	"library-api/handlers"
	"library-api/log"
	"library-api/notify"
	"library-api/service"
	"library-api/workers"
)

func newServeCommand(load func() (config.Config, error)) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on, overrides the configuration")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := log.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	ctx = log.WithLogger(ctx, logrus.NewEntry(logger))

	if !cfg.Server.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	lib, err := service.NewLibrary(
		service.WithPolicy(cfg.Library),
		service.WithNotifier(notify.NewScheduler(notify.NewMockClient())),
	)
	if err != nil {
		return err
	}
	router, err := handlers.NewRouter(lib, cfg, logger)
	if err != nil {
		return err
	}

	sweeperCtx, cancelSweeper := context.WithCancel(ctx)
	sweeperDone := workers.NewExpirySweeper(lib, cfg.Workers.ExpiryInterval).Start(sweeperCtx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr": srv.Addr,
			"env":  cfg.Server.Env,
		}).Info("library api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		cancelSweeper()
		<-sweeperDone
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	cancelSweeper()
	<-sweeperDone
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
