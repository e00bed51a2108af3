package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/api"
	"github.com/erazemk/vitrina/internal/auth"
	"github.com/erazemk/vitrina/internal/blob"
	"github.com/erazemk/vitrina/internal/imaging"
	"github.com/erazemk/vitrina/internal/store"
)

// revocationSweep is how often expired token revocations are dropped.
const revocationSweep = time.Hour

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default :8080)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	log := a.log
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := store.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN, a.cfg.Database.Name)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()
	log.Info("store ready", zap.String("driver", a.cfg.Database.Driver))

	// Load JWT secret from the settings collection unless configured.
	jwtSecret := a.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.GetJWTSecret(ctx, backend); err != nil {
			return err
		}
	}

	authn, err := a.authenticator()
	if err != nil {
		return err
	}
	blobs, err := blob.NewDir(a.cfg.Images.Dir)
	if err != nil {
		return err
	}

	instrumented := store.Instrument(backend, reg)
	revocations := auth.NewRevocations(store.NewTokenRevocations(instrumented))
	revocations.StartSweeper(ctx, revocationSweep, log)

	router := api.NewRouter(api.Deps{
		Store:       store.New(instrumented),
		Blobs:       blobs,
		Images:      imaging.Processor{MaxDimension: a.cfg.Images.MaxDimension},
		Credentials: authn,
		Revocations: revocations,
		JWTSecret:   jwtSecret,
		Logger:      log.Named("http"),
		Registry:    reg,
	})

	server := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", a.cfg.Addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}

	log.Info("server stopped, closing store")
	return nil
}
