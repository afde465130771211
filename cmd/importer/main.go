package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmkang/policy-qa-agent/internal/bootstrap"
	"github.com/jmkang/policy-qa-agent/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <catalog.xlsx>", os.Args[0])
	}
	path := os.Args[1]

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "importer")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	created, err := app.Importer.Import(ctx, path)
	if err != nil {
		app.Logger.Error("catalog_import_failed", "path", path, "created", created, "error", err)
		os.Exit(1)
	}
	app.Logger.Info("catalog_import_done", "path", path, "created", created)
}
