// main.go - Portfolio site server
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	if err := run(app); err != nil {
		app.Logger.Error("Portfolio server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run migrates, serves until SIGINT/SIGTERM/SIGHUP or a server failure, then
// drains the server, the geo workers and the database.
func run(app *internal.Application) error {
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return err
	}
	app.Logger.Info("Migrations completed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Start() }()

	var failure error
	select {
	case <-ctx.Done():
		app.Logger.Info("Shutdown requested")
	case failure = <-serveErr:
		app.Logger.Error("Server stopped unexpectedly", slog.Any("error", failure))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(failure, app.Shutdown(shutdownCtx))
}
