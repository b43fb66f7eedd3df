package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/config"
	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	"github.com/kailas-cloud/valdex/internal/usecase/indexer"
	"github.com/kailas-cloud/valdex/internal/watcher"
)

func newIndexCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index every dataset in the data directory",
		Long: `index rebuilds one collection per *.json file in the data directory.
Each collection is dropped and recreated, so re-running is idempotent.
With --watch it keeps running and re-indexes files as they change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), a.cfg, a.logger, cmd.OutOrStdout(), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-index datasets on change")
	return cmd
}

func runIndex(parent context.Context, cfg config.Config, logger *zap.Logger, out io.Writer, watch bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	src := dataset.NewDirSource(cfg.Indexer.DataDir, logger)
	svc := indexer.New(src, d.docEmbed, d.index, d.dimension, logger).
		WithBatchSize(cfg.Indexer.BatchSize)

	reports, runErr := svc.Run(ctx)
	printReports(out, reports)

	if !watch {
		if runErr != nil {
			return fmt.Errorf("indexing failed: %w", runErr)
		}
		return nil
	}
	if runErr != nil {
		logger.Warn("Initial indexing finished with errors", zap.Error(runErr))
	}

	w := watcher.New(src.Dir(), ".json", reindexHandler(svc, logger), logger,
		watcher.WithDebounce(time.Duration(cfg.Indexer.WatchDebounceMS)*time.Millisecond),
		watcher.WithRemoveHandler(func(_ context.Context, path string) {
			logger.Warn("Dataset removed, collection kept", zap.String("path", path))
		}),
	)
	logger.Info("Watching data directory", zap.String("dir", src.Dir()))
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", src.Dir(), err)
	}
	return nil
}

// reindexHandler rebuilds the collection of a changed file.
func reindexHandler(svc *indexer.Service, logger *zap.Logger) watcher.Handler {
	return func(ctx context.Context, path string) {
		entry, ok := dataset.EntryFor(path)
		if !ok {
			return
		}
		rep, err := svc.IndexEntry(ctx, entry)
		if err != nil {
			logger.Error("Re-index failed", zap.String("collection", entry.Name), zap.Error(err))
			return
		}
		logger.Info("Re-indexed dataset",
			zap.String("collection", rep.Collection),
			zap.String("status", string(rep.Status)),
			zap.Int("indexed", rep.Indexed),
		)
	}
}

func printReports(out io.Writer, reports []indexer.Report) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tSTATUS\tREAD\tINDEXED\tBATCHES\tDURATION\tREASON")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Collection, r.Status, r.Read, r.Indexed, r.Batches, r.Duration.Round(time.Millisecond), r.Reason)
	}
	_ = tw.Flush()
}
