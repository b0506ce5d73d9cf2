// Package main provides a CLI tool for initializing and inspecting the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/storage"
)

func main() {
	action := flag.String("action", "up", "Migration action: up, down, version, info")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(cfg, *action); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func run(cfg *config.Config, action string) error {
	path := cfg.Database.Path

	switch action {
	case "up":
		log.Printf("Initializing database at %s...", path)
		if err := storage.RunMigrations(path); err != nil {
			return err
		}
		log.Println("Database initialized")

	case "down":
		log.Println("Rolling back one migration...")
		if err := storage.RollbackMigrations(path); err != nil {
			return err
		}
		log.Println("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(path)
		if err != nil {
			return err
		}
		log.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	case "info":
		db, err := storage.NewSQLiteDB(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tables, err := db.ListTables(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Database path: %s\n", db.Path())
		fmt.Printf("Tables: %s\n", strings.Join(tables, ", "))

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}
