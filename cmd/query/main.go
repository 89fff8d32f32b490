package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civichq/resultwatch/app/query"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := query.Initialize(ctx)
	if err != nil {
		os.Exit(1)
	}
	app.SetupServer()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		app.Stop(shutdownCtx)
	}()

	if err := app.Start(); err != nil {
		app.Logger.Fatal("Server failed", zap.Error(err))
	}
}
