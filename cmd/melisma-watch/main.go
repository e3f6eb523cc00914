package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"melisma/internal/app"
	"melisma/internal/config"
	"melisma/internal/database"
	"melisma/internal/logging"
	"melisma/internal/scanner"
	"melisma/internal/scheduler"
)

func main() {
	rescanOnStart := flag.Bool("rescan", true, "Refresh all folders on startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.InitGlobalLogger(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format)

	dbManager, err := database.NewDatabaseManager(&cfg.Database, logger.Zerolog())
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer dbManager.Close()

	if err := database.NewMigrationManager(dbManager.GetGormDB(), logger.Zerolog()).Migrate(); err != nil {
		fmt.Printf("Error migrating database: %v\n", err)
		os.Exit(1)
	}

	engine := app.BuildEngine(cfg, dbManager, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *rescanOnStart {
		if _, err := engine.RefreshAllFolders(ctx); err != nil {
			logger.Zerolog().Error().Err(err).Msg("Startup library refresh failed")
		}
	}

	sched := scheduler.NewScheduler(engine, logger)
	if err := sched.Start(ctx, cfg.Library.RescanSchedule); err != nil {
		fmt.Printf("Error starting scheduler: %v\n", err)
		os.Exit(1)
	}
	defer sched.Stop()

	if !cfg.Library.WatcherEnabled {
		logger.Info("Filesystem watcher disabled, waiting for scheduled refreshes")
		<-ctx.Done()
		return
	}

	watcher, err := scanner.NewWatcher(engine, cfg.Library.WatcherDebounce, logger)
	if err != nil {
		fmt.Printf("Error creating watcher: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Watching library folders for changes")
	if err := watcher.Start(ctx); err != nil {
		logger.Zerolog().Error().Err(err).Msg("Watcher stopped with error")
	}
}
