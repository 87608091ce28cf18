package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/api"
	"github.com/newsforge/newsforge/internal/index"
	"github.com/newsforge/newsforge/internal/search"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the hybrid search HTTP API",
		RunE:  runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup("serve")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync is best effort

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	articles, err := buildArticleStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("build article store: %w", err)
	}
	defer articles.Close()

	idx, err := index.Open(index.Config{Path: cfg.Index.Path, InMemory: cfg.Index.InMemory}, log)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			log.Warn("index close failed", zap.Error(cerr))
		}
	}()

	embedder, err := buildEmbedder(cfg.Embed, log)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	fuser := search.New(search.Config{
		Alpha:    cfg.Search.Alpha,
		PoolSize: cfg.Search.PoolSize,
	}, idx, embedder, log)
	server := api.NewServer(fuser, articles, idx, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("search gateway listening", zap.Int("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("search gateway stopped")
	return nil
}
