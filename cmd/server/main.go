// Command server runs the HTTP API adapter: the on-demand read/control
// surface spec.md §6 names. It shares the relational and TSDB stores with
// cmd/monitor but runs no background collector, screener, or monitor loop
// of its own — those are cmd/monitor's job (spec.md §5's two-process
// split, grounded on the teacher's bot-process/HTTP-server separation).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"binance-trading-bot/internal/api"
	"binance-trading-bot/internal/app"
	"binance-trading-bot/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("building app: %v", err)
	}
	defer a.Close()

	server := api.NewServer(
		api.Config{Host: cfg.Server.Host, Port: cfg.Server.Port, ProductionMode: cfg.Logging.Level != "DEBUG"},
		a.Public, a.Candles, a.Repo, a.Screener, a.PaperEngine, a.NotifyGate, a.Cache, a.Logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10_000_000_000)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("shutting down server")
		}
	case err := <-errCh:
		if err != nil {
			a.Logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("server exited")
		}
	}
}
