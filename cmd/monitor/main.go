// Command monitor runs the background half of the system: the k-line
// collector keeping the candle store warm, and the screen-score-trade
// loop that drives paper accounts and notifications. It shares the
// relational and TSDB stores with cmd/server but exposes no HTTP surface.
package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

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

	a.Collector.Start(ctx, cfg.Collector.BaseTimeframe)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Monitor.Run(ctx)
	}()

	<-ctx.Done()
	a.Logger.Info("shutting down monitor")
	a.Collector.Stop()
	wg.Wait()
}
