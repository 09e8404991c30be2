package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sir_venger/girder_uploader/internal/config"
	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/internal/repo/journal"
	"github.com/sir_venger/girder_uploader/internal/usecase/uploadsvc"
	"github.com/sir_venger/girder_uploader/pkg/progress"
)

type uploadFlags struct {
	parentID    string
	parentType  string
	chunkSize   string
	concurrency int
	noProgress  bool
	keepPartial bool
}

func newUploadCmd(global *globalFlags) *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload local files in resumable chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(global)
			if err != nil {
				return err
			}
			return runUpload(cmd.Context(), e, flags, args, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.parentID, "parent-id", "", "id of the destination folder or item")
	f.StringVar(&flags.parentType, "parent-type", string(models.ParentFolder), "destination kind: folder or item")
	f.StringVar(&flags.chunkSize, "chunk-size", "", "chunk size, e.g. 8MiB (overrides config)")
	f.IntVar(&flags.concurrency, "concurrency", 0, "files uploaded in parallel (overrides config)")
	f.BoolVar(&flags.noProgress, "no-progress", false, "do not draw progress bars")
	f.BoolVar(&flags.keepPartial, "keep-partial", false, "keep partially uploaded items on failure")
	_ = cmd.MarkFlagRequired("parent-id")

	return cmd
}

func runUpload(ctx context.Context, e *env, flags uploadFlags, paths []string, out io.Writer) error {
	parentType, err := models.ParseParentType(flags.parentType)
	if err != nil {
		return err
	}

	chunkSize := int64(e.cfg.Client.ChunkSize)
	if flags.chunkSize != "" {
		n, perr := config.ParseByteSize(flags.chunkSize)
		if perr != nil {
			return perr
		}
		chunkSize = int64(n)
	}
	concurrency := e.cfg.Client.Concurrency
	if flags.concurrency > 0 {
		concurrency = flags.concurrency
	}

	store, err := journal.Open(ctx, e.cfg.Client.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := uploadsvc.NewMetrics(reg)
	stopMetrics := serveMetrics(e, reg)
	defer stopMetrics()

	coord := uploadsvc.New(uploadsvc.Deps{
		Client:           e.client,
		Journal:          store,
		Log:              e.log,
		Metrics:          metrics,
		Retry:            retryPolicy(e.cfg.Client.Retry),
		ChunkSize:        chunkSize,
		Concurrency:      concurrency,
		CleanupOnFailure: e.cfg.Client.CleanupOnFailure && !flags.keepPartial,
	})

	reqs := make([]uploadsvc.TransferRequest, 0, len(paths))
	bars := make([]*progress.Bar, 0, len(paths))
	for _, p := range paths {
		src, oerr := uploadsvc.OpenSource(p)
		if oerr != nil {
			return oerr
		}
		defer src.Close()

		var bar *progress.Bar
		if !flags.noProgress {
			bar = progress.New(os.Stderr, src.Name(), src.Size())
			bar.Start()
		}
		bars = append(bars, bar)

		reqs = append(reqs, uploadsvc.TransferRequest{
			Init: models.InitRequest{
				ParentID:   flags.parentID,
				ParentType: parentType,
				Name:       src.Name(),
				Size:       src.Size(),
				MimeType:   src.MimeType(),
			},
			Source:     src,
			ChunkSize:  chunkSize,
			OnProgress: func(s models.UploadSession) { bar.Set(s.ReceivedOffset) },
		})
	}

	e.log.Info().
		Int("files", len(reqs)).
		Str("chunk_size", humanize.IBytes(uint64(chunkSize))).
		Int("concurrency", concurrency).
		Msg("starting upload")

	results, err := coord.UploadMany(ctx, reqs)
	for i, r := range results {
		if r.Err != nil {
			bars[i].Fail(r.Err)
			continue
		}
		bars[i].Finish()
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.File.FileID, r.File.ItemID, r.Name)
	}
	return err
}

// serveMetrics поднимает /metrics, если задан metrics_addr.
func serveMetrics(e *env, reg *prometheus.Registry) func() {
	addr := e.cfg.Client.MetricsAddr
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
