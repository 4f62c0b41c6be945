package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"task-observer/src/config"
	"task-observer/src/feed"
	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/server"
	"task-observer/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name+"-sim")

	// 2. Setup Storage
	var store interfaces.ITaskStore

	switch config.Sim.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresTaskStore(config.MConfig, appLogger)
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteTaskStore(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate store: %v", err)
	}
	defer store.Close()

	// 3. Server and Feed
	srv := server.NewSimServer(config.MConfig, store, appLogger)
	quotes := feed.NewQuoteFeed(config.MConfig, store, srv.PublishQuote, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go quotes.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 4. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
}
