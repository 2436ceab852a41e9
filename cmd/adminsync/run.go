package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/playok/adminsync/internal/api"
	"github.com/playok/adminsync/internal/config"
	"github.com/playok/adminsync/internal/logging"
	"github.com/playok/adminsync/internal/settings"
	"github.com/playok/adminsync/internal/store"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	var daemon bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run in foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
			defer stop()
			return runServer(ctx, cfg, cmd, daemon)
		},
	}
	// Set by "start" on the re-executed child.
	cmd.Flags().BoolVar(&daemon, "daemon", false, "Write and remove the PID file")
	cmd.Flags().MarkHidden("daemon")
	return cmd
}

func handlerOptions(cfg *config.Config) settings.Options {
	return settings.Options{
		Fields:    cfg.Fields,
		Prefix:    cfg.OptionPrefix,
		GMTOffset: cfg.GMTOffset,
		EchoInput: cfg.EchoInput,
	}
}

func runServer(ctx context.Context, cfg *config.Config, cmd *cobra.Command, daemon bool) error {
	if daemon {
		if err := writePidFile(cfg.PidFile, os.Getpid()); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(cfg.PidFile)
	}
	// A daemon child's stderr is already the log file.
	logger, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	metrics := api.NewMetrics()
	handler := settings.NewHandler(st, handlerOptions(cfg),
		settings.WithLogger(logger.Named("settings")),
		settings.WithObserver(metrics))

	hub := api.NewHub(logger.Named("ws"))
	handler.Subscribe(hub.BroadcastSaved)

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: api.NewRouter(api.Deps{
			Handler:  handler,
			Store:    st,
			Hub:      hub,
			Metrics:  metrics,
			Logger:   logger.Named("api"),
			APIName:  cfg.APIName,
			BasePath: cfg.BasePath,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("version", version),
			zap.String("addr", "http://"+cfg.Listen),
			zap.String("base_path", cfg.BasePath),
			zap.String("store", cfg.Store.Driver),
			zap.String("api_name", cfg.APIName))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, cfg, cmd.Flags(), logger.Named("config"), func(next *config.Config) {
			handler.Reconfigure(handlerOptions(next))
		})
		if err != nil {
			// Serving without hot reload is still useful.
			logger.Warn("config watch disabled", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	logger.Info("goodbye")
	return err
}
