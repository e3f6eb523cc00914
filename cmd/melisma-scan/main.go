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
	"melisma/internal/services"
)

func main() {
	folderPath := flag.String("path", "", "Library folder to register and scan")
	refreshAll := flag.Bool("all", false, "Rescan every registered folder")
	flag.Parse()

	if *folderPath == "" && !*refreshAll {
		fmt.Println("Usage: melisma-scan -path <library-folder> | -all")
		flag.PrintDefaults()
		os.Exit(1)
	}

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

	if *refreshAll {
		outcome, err := engine.RefreshAllFolders(ctx)
		if err != nil {
			fmt.Printf("Error refreshing library: %v\n", err)
			os.Exit(1)
		}
		printOutcome(outcome)
		return
	}

	repo := services.NewRepository(dbManager.GetGormDB())
	folder, err := repo.GetFolderByPath(*folderPath)
	if err != nil {
		registered, outcome, addErr := engine.AddFolder(ctx, *folderPath)
		if addErr != nil {
			fmt.Printf("Error adding folder: %v\n", addErr)
			os.Exit(1)
		}
		fmt.Printf("Registered folder %d: %s\n", registered.ID, registered.Path)
		printOutcome(outcome)
		return
	}

	outcome, err := engine.RescanFolder(ctx, folder.ID)
	if err != nil {
		fmt.Printf("Error scanning folder: %v\n", err)
		os.Exit(1)
	}
	printOutcome(outcome)
}

func printOutcome(outcome *scanner.Outcome) {
	if outcome == nil {
		fmt.Println("Scan skipped: another sync operation is running")
		return
	}

	fmt.Println("\n=== Scan Complete ===")
	fmt.Printf("Scan ID: %s\n", outcome.ScanID)
	fmt.Printf("Files seen: %d\n", outcome.FilesSeen)
	fmt.Printf("Added: %d\n", outcome.Added)
	fmt.Printf("Modified: %d\n", outcome.Modified)
	fmt.Printf("Removed: %d\n", outcome.Removed)
	if !outcome.Completed {
		fmt.Println("Scan was cancelled before completion; no changes were committed")
	}
}
