package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/sir_venger/girder_uploader/internal/config"
	"github.com/sir_venger/girder_uploader/internal/logger"
	"github.com/sir_venger/girder_uploader/internal/repo/journal"
)

func main() {
	dsnFlag := flag.String("dsn", "", "journal DSN (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	lg := logger.New("info", os.Stderr, true)
	if err != nil {
		lg.Fatal().Err(err).Msg("load config")
	}
	lg = logger.New(cfg.LogLevel, os.Stderr, true)

	dsn := strings.TrimSpace(cfg.Client.JournalDSN)
	if *dsnFlag != "" {
		dsn = strings.TrimSpace(*dsnFlag)
	}
	if dsn == "" {
		lg.Fatal().Msg("journal_dsn is not configured")
	}
	if strings.HasPrefix(dsn, "memory://") {
		lg.Info().Msg("memory journal selected, skipping migrations")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := journal.NewPGStore(ctx, dsn, journal.WithMigrations())
	if err != nil {
		lg.Fatal().Err(err).Msg("apply migrations")
	}
	store.Close()

	lg.Info().Msg("migrations applied")
}
