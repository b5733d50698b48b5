// Command migrate runs goose against the embedded schema.
//
//	migrate <up|down|status|redo|version> [args...]
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/config"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|redo|version> [args...]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if err := postgres.RunMigrations(context.Background(), cfg.DatabaseDSN(), os.Args[1], os.Args[2:]...); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}
}
