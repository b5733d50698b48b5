// Package main starts the storefront reward API.
// It loads the configuration, builds the application and stops gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/app"
	"github.com/flardop/Advanced-Retro-sub001/internal/config"
)

func main() {
	setupLogging("text")

	log.Info("=== Storefront starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg.AppLogFormat)
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	// Cancelled on Ctrl+C or docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise application")
	}
	defer application.Close()

	log.WithField("addr", cfg.HTTPAddr).Info("=== Storefront ready ===")

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("Application stopped with error")
		application.Close()
		os.Exit(1)
	}

	log.Info("=== Storefront stopped ===")
}

func setupLogging(format string) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	log.SetOutput(os.Stdout)
}
