package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sir_venger/girder_uploader/internal/config"
	"github.com/sir_venger/girder_uploader/internal/logger"
	"github.com/sir_venger/girder_uploader/internal/usecase/uploadsvc"
	"github.com/sir_venger/girder_uploader/pkg/girderclient"
)

type globalFlags struct {
	configPath string
	apiURL     string
	token      string
	logLevel   string
}

// env — собранное окружение команды: конфиг, логгер и клиент API.
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	client girderclient.Client
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "uploader",
		Short:         "Resumable chunked uploads to a Girder-style data management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	pf.StringVar(&flags.apiURL, "api-url", "", "API base URL, e.g. https://girder.example.org/api/v1")
	pf.StringVar(&flags.token, "token", "", "Girder-Token credential")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newUploadCmd(&flags),
		newOffsetCmd(&flags),
		newFileCmd(&flags),
		newAbortCmd(&flags),
		newWhoamiCmd(&flags),
	)
	return root
}

func setup(flags *globalFlags) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.apiURL != "" {
		cfg.Client.APIURL = flags.apiURL
	}
	if flags.token != "" {
		cfg.Client.Token = flags.token
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err = cfg.ValidateClient(); err != nil {
		return nil, err
	}

	lg := logger.New(cfg.LogLevel, os.Stderr, true)
	httpClient := &http.Client{Timeout: cfg.Client.RequestTimeout}

	return &env{
		cfg:    cfg,
		log:    lg,
		client: girderclient.New(cfg.Client.APIURL, cfg.Client.Token, girderclient.WithHTTPClient(httpClient)),
	}, nil
}

// coordinator строит координатор без журнала и метрик; для одиночных операций их хватает.
func (e *env) coordinator() *uploadsvc.Coordinator {
	return uploadsvc.New(uploadsvc.Deps{
		Client:           e.client,
		Log:              e.log,
		Retry:            retryPolicy(e.cfg.Client.Retry),
		ChunkSize:        int64(e.cfg.Client.ChunkSize),
		Concurrency:      e.cfg.Client.Concurrency,
		CleanupOnFailure: e.cfg.Client.CleanupOnFailure,
	})
}

func retryPolicy(rc config.RetryConfig) uploadsvc.RetryPolicy {
	return uploadsvc.RetryPolicy{
		MaxAttempts:     rc.MaxAttempts,
		InitialInterval: rc.InitialInterval,
		MaxInterval:     rc.MaxInterval,
	}
}
