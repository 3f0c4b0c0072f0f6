package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vaultrag/internal/indexer"
	"github.com/dshills/vaultrag/internal/mcp"
	"github.com/dshills/vaultrag/internal/vault"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval over MCP on stdio and keep the index current",
		Long: `Start the MCP server on stdio. While it runs, vaultrag watches the vault for
edits, re-indexes changed notes after a quiet period and runs scheduled bulk
passes. An empty index is built on start.

Examples:
  vaultrag serve --vault ~/Notes
  vaultrag serve --config ./vaultrag.yaml --no-watch`,
		RunE: runServe,
	}

	cmd.Flags().Bool("no-watch", false, "do not watch the vault for changes")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		watcher, err := vault.NewWatcher(a.notes, a.logger)
		if err != nil {
			return fmt.Errorf("failed to watch vault: %w", err)
		}
		defer func() { _ = watcher.Close() }()
		g.Go(func() error {
			if err := a.maintainer.Watch(ctx, watcher.Watch(ctx)); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if a.cfg.ScheduleEnabled() {
		sched, err := indexer.NewScheduler(ctx, a.maintainer)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if a.cfg.Indexing.IndexOnStart {
		g.Go(func() error {
			if _, err := a.maintainer.EnsureIndexed(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("initial indexing failed", "error", err)
			}
			return nil
		})
	}

	server := mcp.NewServer(mcp.Deps{
		Searcher:   a.searcher,
		Maintainer: a.maintainer,
		Storage:    a.db,
		Keys:       a,
		Logger:     a.logger,
	})
	g.Go(func() error {
		// stdin closing ends the session, and with it the watcher.
		defer cancel()
		return server.Serve(ctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.logger.Info("server stopped")
	return err
}
