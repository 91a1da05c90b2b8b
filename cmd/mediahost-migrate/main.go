// Package main is the entry point for the MediaHost database migration tool.
// It applies the embedded schema migrations for either backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/config"
	"github.com/prn-tf/mediahost/internal/repository/postgres"
	"github.com/prn-tf/mediahost/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "version":
		fmt.Printf("MediaHost Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := migrateUp(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied")

	case "status":
		if err := status(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func migrateUp(configPath string) error {
	cfg := config.MustLoad(configPath)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel)

	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	}

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}

func status(configPath string) error {
	cfg := config.MustLoad(configPath)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		version, err := db.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Driver:  postgres\nVersion: %d\n", version)
		return nil
	}

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	version, err := db.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Driver:  sqlite\nVersion: %d\n", version)
	return nil
}

func printUsage() {
	fmt.Println(`MediaHost Migration Tool

Usage:
  mediahost-migrate [-config <path>] <command>

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message`)
}
