package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"task-observer/src/buffers"
	"task-observer/src/channel"
	"task-observer/src/config"
	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/network"
	"task-observer/src/reconcile"
	"task-observer/src/render"
	"task-observer/src/rooms"
	"task-observer/src/watch"
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
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 2. Setup Components
	var api interfaces.ITaskAPI = network.NewTaskAPI(config.API, appLogger)
	conn := channel.NewConnection(config.Channel, appLogger)
	bufs := buffers.NewSampleBuffers(config.Buffer.Capacity, appLogger)
	reconciler := reconcile.NewReconciler(api, appLogger)
	roomMgr := rooms.NewManager(conn, bufs, appLogger)
	var renderer interfaces.IRenderer = render.NewConsoleRenderer()

	watcher := watch.NewWatcher(config.Watch, conn, reconciler, roomMgr, bufs, renderer, appLogger)

	// 3. Run until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutting down...")
		cancel()
	}()

	appLogger.Info("Watching tasks on %s", config.API.BaseURL)

	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		appLogger.Error("Watcher exited: %v", err)
	}
}
