package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/vaultrag/internal/config"
	"github.com/dshills/vaultrag/internal/dateindex"
	"github.com/dshills/vaultrag/internal/dateintent"
	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/indexer"
	"github.com/dshills/vaultrag/internal/llm"
	"github.com/dshills/vaultrag/internal/searcher"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *storage.SQLiteStorage
	notes      *vault.FSStore
	embed      *embedder.Handle
	chat       *llm.Handle
	dates      *dateindex.Index
	searcher   *searcher.Searcher
	maintainer *indexer.Maintainer
}

// loadConfig reads the config named by --config, applies --vault, resolves
// the API key and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if v, _ := cmd.Root().PersistentFlags().GetString("vault"); v != "" {
		cfg.Vault.Path = v
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(cfg.Logging, verbose)

	config.ResolveAPIKey(cfg, logger)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger writes to stderr; stdout belongs to the MCP protocol.
func newLogger(lc config.LoggingConfig, verbose bool) *slog.Logger {
	level := lc.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	notes, err := vault.NewFSStore(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	if err := cfg.EnsureDBDir(); err != nil {
		return nil, err
	}
	db, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	embedHandle := embedder.NewHandle(emb)
	chatHandle := llm.NewHandle(newChat(cfg, logger))

	dates := dateindex.New(db.Dates(), notes, dateindex.Options{
		Location:        loc,
		ExcludedFolders: cfg.Vault.ExcludedFolders,
		Logger:          logger,
	})

	srch := searcher.New(searcher.Deps{
		Embeddings: db.Embeddings(),
		Docs:       notes,
		Embedder:   embedHandle,
		Links:      vault.NewLinkGraph(notes),
		Dates:      dates,
		Classifier: dateintent.New(chatHandle, dateintent.Options{Location: loc, Logger: logger}),
		Logger:     logger,
	}, searcher.Options{
		Threshold:       cfg.Search.Threshold,
		TopK:            cfg.Search.TopK,
		MaxResults:      cfg.Search.MaxResults,
		ChunkSize:       cfg.Search.ChunkSize,
		SemanticWeight:  cfg.Search.SemanticWeight,
		KeywordWeight:   cfg.Search.KeywordWeight,
		ExcludedFolders: cfg.Vault.ExcludedFolders,
		CacheTTL:        cfg.Search.CacheTTL,
	})

	schedule := cfg.Indexing.Schedule
	if !cfg.ScheduleEnabled() {
		schedule = ""
	}
	m := indexer.New(indexer.Deps{
		Docs:       notes,
		Embeddings: db.Embeddings(),
		Dates:      dates,
		Embedder:   embedHandle,
		Logger:     logger,
		OnIndexed:  srch.InvalidateCache,
	}, indexer.Config{
		ExcludedFolders: cfg.Vault.ExcludedFolders,
		Debounce:        cfg.Indexing.Debounce,
		MinCallInterval: cfg.Indexing.MinCallInterval,
		Schedule:        schedule,
	})

	logger.Debug("vaultrag initialised",
		"vault", cfg.Vault.Path,
		"db", cfg.DBPath(),
		"provider", embedHandle.Provider(),
		"model", embedHandle.Model(),
		"api_key_source", cfg.APISource,
		"sqlite", storage.BuildMode,
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		notes:      notes,
		embed:      embedHandle,
		chat:       chatHandle,
		dates:      dates,
		searcher:   srch,
		maintainer: m,
	}, nil
}

// newChat returns the date classifier's chat client, or nil without an API
// key. Date detection then fails open.
func newChat(cfg *config.Config, logger *slog.Logger) llm.ChatProvider {
	chat, err := llm.NewOpenAIChat(cfg.ChatConfig())
	if err != nil {
		logger.Debug("date detection disabled", "error", err)
		return nil
	}
	return chat
}

// SetAPIKey stores key in the OS keyring and rebinds both provider handles.
func (a *app) SetAPIKey(ctx context.Context, key string) error {
	if err := config.StoreAPIKey(key); err != nil {
		return err
	}

	cfg := *a.cfg
	cfg.Embedding.APIKey = key
	cfg.APISource = config.SourceKeyring

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	oldModel := a.embed.Provider() + "/" + a.embed.Model()
	if err := a.embed.Rebind(emb); err != nil {
		a.logger.Warn("closing previous embedder failed", "error", err)
	}
	a.chat.Rebind(newChat(&cfg, a.logger))
	a.cfg = &cfg
	a.searcher.InvalidateCache()

	if newModel := emb.Provider() + "/" + emb.Model(); newModel != oldModel {
		a.logger.Warn("embedding model changed, existing vectors are not comparable",
			"from", oldModel, "to", newModel, "hint", "run index_vault with force")
	}
	return nil
}

func (a *app) Close() error {
	return errors.Join(
		a.maintainer.Close(),
		a.embed.Close(),
		a.db.Close(),
	)
}
