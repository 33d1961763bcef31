package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/jrsteele09/tutorhub-web/server"
	"github.com/jrsteele09/tutorhub-web/tab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v\n%s", r, debug.Stack())
			returnError = errors.New("panic recovered")
		}
	}()

	if err := config.Load(".env"); err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	backends, err := tab.OpenBackends(ctx, c, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tb, err := tab.New(ctx, c, tab.Deps{
		Store:   backends.Store,
		Channel: backends.NewChannel(),
		Metrics: m,
		Logger:  log.Logger,
	})
	if err != nil {
		return err
	}
	defer tb.Close()

	table, err := routes.Load()
	if err != nil {
		return err
	}
	handler, err := server.New(c, tb, table, server.WithLogger(log.Logger), server.WithMetrics(m, reg))
	if err != nil {
		return err
	}

	// Serve straight away: guarded pages answer 503 until the session is resolved
	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	if err := tb.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("session bootstrap failed, continuing anonymous")
	}

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
