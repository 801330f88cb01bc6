// Package main implements the myRC server. The process serves the budget
// tracking REST API, runs the audit maintenance jobs, and persists to
// PostgreSQL (or an in-memory store when no database is configured).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/myrc-project/myrc/internal/app/runtime"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("MYRC_CONFIG", *configPath)
	}

	log.Println("Starting myRC server")

	app, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	runErr := app.Run(ctx)

	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Server error: %v", runErr)
	}
	log.Println("Server stopped")
}
