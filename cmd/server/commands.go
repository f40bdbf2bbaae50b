package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"travel/internal/repository/postgres"
)

func serveCmd() *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and, unless disabled, the notification workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cfg, usesPostgres(cfg), usesRedis(cfg))
			if err != nil {
				return err
			}
			defer rt.close()

			c, err := rt.build()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			var wg sync.WaitGroup
			if !noWorkers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := c.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						rt.log.Error("notification dispatcher stopped", zap.Error(err))
					}
				}()
			}

			server := &http.Server{
				Addr:         ":" + rt.cfg.Server.Port,
				Handler:      c.Router,
				ReadTimeout:  rt.cfg.Server.ReadTimeout,
				WriteTimeout: rt.cfg.Server.WriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				rt.log.Info("starting server", zap.String("port", rt.cfg.Server.Port), zap.String("store", rt.cfg.Server.Store))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					stop()
					wg.Wait()
					return err
				}
			}

			rt.log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				rt.log.Error("server forced to shutdown", zap.Error(err))
			}

			wg.Wait()
			rt.log.Info("server exited")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve HTTP only; run `worker` separately")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the notification dispatcher without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !usesRedis(cfg) {
				return errNoSharedQueue
			}

			rt, err := openRuntime(cfg, usesPostgres(cfg), true)
			if err != nil {
				return err
			}
			defer rt.close()

			c, err := rt.build()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			rt.log.Info("starting notification workers", zap.Int("workers", rt.cfg.Notification.Workers))
			if err := c.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.log.Info("workers exited")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema to PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cfg, true, false)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := postgres.Migrate(ctx, rt.db); err != nil {
				return err
			}
			rt.log.Info("schema applied", zap.String("database", rt.cfg.Database.DBName))
			return nil
		},
	}
}
