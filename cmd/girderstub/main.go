package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sir_venger/girder_uploader/internal/app/girderhttp"
	"github.com/sir_venger/girder_uploader/internal/config"
	"github.com/sir_venger/girder_uploader/internal/logger"
)

// main поднимает локальный upload API на диске с фоновым GC и graceful shutdown.
func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides CONFIG_PATH)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Stub.ListenAddr = *addr
	}
	if err = cfg.ValidateStub(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	lg := logger.New(cfg.LogLevel, os.Stderr, false)

	if err = os.MkdirAll(cfg.Stub.DataDir, 0o755); err != nil {
		lg.Fatal().Err(err).Str("data_dir", cfg.Stub.DataDir).Msg("create data dir")
	}

	srv, h := girderhttp.NewServer(girderhttp.OptionsFromConfig(cfg.Stub, lg))

	stopGC := srv.StartGC(cfg.Stub.GCTTL, cfg.Stub.GCInterval)
	defer stopGC()

	server := &http.Server{
		Addr:              cfg.Stub.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("shutdown")
		}
	}()

	lg.Info().
		Str("addr", cfg.Stub.ListenAddr).
		Str("data_dir", cfg.Stub.DataDir).
		Dur("gc_ttl", cfg.Stub.GCTTL).
		Dur("gc_every", cfg.Stub.GCInterval).
		Int("tokens", len(cfg.Stub.Tokens)).
		Msg("girder stub listening")

	if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal().Err(err).Msg("listen")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path, true)
	}
	return config.Load()
}
