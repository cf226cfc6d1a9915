package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-capture/auth"
	"github.com/marcelsud/webhook-capture/config"
	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/endpoint/postgres"
	"github.com/marcelsud/webhook-capture/endpoint/sqlite"
	"github.com/marcelsud/webhook-capture/fanout"
	chihandlers "github.com/marcelsud/webhook-capture/internal/http/chi"
	"github.com/marcelsud/webhook-capture/metrics"
	"github.com/marcelsud/webhook-capture/stats"
)

const TIMEOUT = 30 * time.Second

/* main is the entry and exit door of the application: it wires the
 * storage, business and HTTP layers together and owns process lifecycle.
 * The wiring lives in run so its deferred cleanups execute on every exit
 * path; main only reports the outcome.
 *
 * Imports flow in one direction only: the application wires business
 * packages, which wire the storage layer, never the other way around.
 */

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("exiting")
	}
}

func run(logger zerolog.Logger) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer repo.Close(ctx)

	verifier, err := auth.NewStaticVerifier(cfg.AdminUser, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("configuring credentials: %w", err)
	}

	endpointService := endpoint.NewService(repo, cfg.PayloadsPerPage)
	statsService := stats.NewService(repo)
	hub := fanout.NewHub()

	exporter, err := metrics.NewOTelExporter(metrics.NewStorageCollector(repo))
	if err != nil {
		return fmt.Errorf("configuring metrics: %w", err)
	}
	defer exporter.Shutdown(ctx)

	r := chihandlers.Handlers(ctx, endpointService, statsService, hub, verifier, exporter, cfg.BaseURL)

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	logger.Info().Str("port", cfg.Port).Str("driver", cfg.Driver).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	if err := <-errShutdown; err != nil {
		return err
	}
	return nil
}

func openRepository(cfg *config.Config) (endpoint.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewRepository(cfg.DatabaseURL)
	case "sqlite":
		return sqlite.NewRepository(cfg.DBName)
	default:
		return nil, fmt.Errorf("unknown driver %q (expected postgres or sqlite)", cfg.Driver)
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	default:
		errShutdown <- fmt.Errorf("forcing the server closed: %w", err)
	}
}
