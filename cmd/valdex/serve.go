package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/config"
	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	chiTransport "github.com/kailas-cloud/valdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/valdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/valdex/internal/usecase/health"
	"github.com/kailas-cloud/valdex/internal/usecase/indexer"
	"github.com/kailas-cloud/valdex/internal/usecase/query"
	"github.com/kailas-cloud/valdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/valdex/internal/usecase/suggestion"
	"github.com/kailas-cloud/valdex/internal/usecase/validation"
	"github.com/kailas-cloud/valdex/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				a.cfg.HTTP.Port = port
			}
			return runServe(cmd.Context(), a.cfg, a.logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides http.port)")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting valdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
	)

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	// In-memory index starts empty: load the data directory before accepting traffic.
	if cfg.VectorIndex.Driver == "memory" {
		svc := indexer.New(dataset.NewDirSource(cfg.Indexer.DataDir, logger), d.docEmbed, d.index, d.dimension, logger).
			WithBatchSize(cfg.Indexer.BatchSize)
		if _, err := svc.Run(ctx); err != nil {
			logger.Warn("Startup indexing finished with errors", zap.Error(err))
		}
	}

	llm := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Timeout:           time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Logger:            logger,
	})

	retrievalSvc := retrieval.New(d.index, d.queryEmb, retrieval.Config{
		TopK:           cfg.Retrieval.TopK,
		Concurrency:    cfg.Retrieval.Concurrency,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	}, logger)
	validationSvc := validation.New(llm, validation.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Grounding:   validation.Grounding(cfg.Validation.Grounding),
	}, logger)
	// Values are compared as documents, so the cache populated by the indexer is reused here.
	suggestionSvc := suggestion.New(d.docEmbed, suggestion.Config{
		SimilarityFloor:  cfg.Suggestions.SimilarityFloor,
		MaxPerCollection: cfg.Suggestions.MaxPerCollection,
	}, logger)
	querySvc := query.New(retrievalSvc, validationSvc, suggestionSvc, logger)

	var cache healthuc.CachePinger
	if d.store != nil {
		cache = d.store
	}
	healthSvc := healthuc.New(d.index, &embeddingHealthChecker{embedder: d.base}, llm, cache, logger)

	srv := chiTransport.NewServer(querySvc, d.index, healthSvc, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(cfg.Auth.APIKeys),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
