package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"atlasd/atlas"
	"atlasd/chat"
	"atlasd/config"
	"atlasd/mcp"
	"atlasd/provider"
	"atlasd/session"
	"atlasd/web"
)

const Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "atlasd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug || config.CheckDebug())
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("starting atlasd", zap.String("version", Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := cfg.DataDir()
	if err := config.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := atlas.NewStore(
		resolvePath(dataDir, cfg.Atlas.ProgramsFile),
		resolvePath(dataDir, cfg.Atlas.TreeFile),
		resolvePath(dataDir, cfg.Atlas.AssetsDir),
		resolvePath(dataDir, cfg.Atlas.NodeSummaryDir),
		logger)
	if err != nil {
		return err
	}

	index := buildGeneIndex(cfg, dataDir, store, logger)
	if index != nil {
		defer index.Close()
	}
	atlasHandler := web.NewAtlasHandler(store, index, logger)

	sessions := session.NewStore(cfg.Chat.MaxHistory, cfg.SessionTTL(), logger)
	go sessions.RunSweeper(ctx, cfg.SweepInterval())

	var chatHandler *web.ChatHandler
	if cfg.Chat.Enabled {
		chatHandler, err = buildChatHandler(ctx, cfg, dataDir, sessions, logger)
		if err != nil {
			return err
		}
		defer shutdownToolProviders(logger)
	} else {
		logger.Info("chat assistant disabled")
		chatHandler = web.NewChatHandler(false, sessions, nil, nil, logger)
	}

	server := web.NewServer(chatHandler, atlasHandler, logger)
	return server.Run(ctx, cfg.Server.ListenAddr)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// resolvePath expands ~ and anchors relative artifact paths at the data
// directory.
func resolvePath(dataDir, path string) string {
	if path == "" {
		return ""
	}
	path = config.ExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

// buildGeneIndex creates and populates the gene search index. Failure is not
// fatal; the server runs without gene search.
func buildGeneIndex(cfg *config.Config, dataDir string, store *atlas.Store, logger *zap.Logger) *atlas.GeneIndex {
	path := cfg.Atlas.GeneIndexPath
	if path == "" {
		path = filepath.Join(dataDir, "gene_index.db")
	} else {
		path = config.ExpandPath(path)
	}

	index, err := atlas.NewGeneIndex(path)
	if err != nil {
		logger.Warn("gene index unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}

	start := time.Now()
	if err := index.Build(store); err != nil {
		logger.Warn("gene index build failed", zap.Error(err))
		index.Close()
		return nil
	}
	logger.Info("gene index built",
		zap.String("path", path),
		zap.Duration("took", time.Since(start)))
	return index
}

// processManager is package-level so the deferred shutdown in run can reach
// it after buildChatHandler returns.
var processManager *mcp.ProcessManager

func buildChatHandler(ctx context.Context, cfg *config.Config, dataDir string, sessions *session.Store, logger *zap.Logger) (*web.ChatHandler, error) {
	creds, err := loadCredentials(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	backend, err := provider.NewProvider(provider.Config{
		Type:      provider.MapProviderIDToType(cfg.Chat.Provider),
		BaseURL:   cfg.Chat.BaseURL,
		Model:     cfg.Chat.Model,
		APIKey:    creds.Get(cfg.Chat.Provider),
		MaxTokens: cfg.Chat.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}
	logger.Info("chat backend configured",
		zap.String("provider", cfg.Chat.Provider),
		zap.String("model", backend.GetModel()))

	processManager = mcp.NewProcessManager(logger)
	dispatcher := mcp.NewDispatcher(processManager, logger)
	for _, tp := range cfg.ToolProviders {
		if !tp.Enabled {
			continue
		}
		if err := processManager.StartProvider(ctx, tp); err != nil {
			logger.Warn("tool provider failed to start",
				zap.String("provider", tp.ID),
				zap.Error(err))
			continue
		}
		tools, err := processManager.GetTools(tp.ID)
		if err != nil {
			logger.Warn("tool listing failed", zap.String("provider", tp.ID), zap.Error(err))
			continue
		}
		dispatcher.RegisterProvider(tp, tools)
		logger.Info("tool provider registered",
			zap.String("provider", tp.ID),
			zap.Int("tools", len(tools)))
	}

	systemPrompt := cfg.Chat.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = config.DefaultSystemPrompt
	}

	adapter := chat.NewAdapter(backend, dispatcher, systemPrompt,
		cfg.Chat.MaxToolRounds, cfg.CompletionTimeout(), logger)
	relay := chat.NewRelay(sessions, adapter, logger)

	return web.NewChatHandler(true, sessions, relay, backend, logger), nil
}

func loadCredentials(cfg *config.Config, dataDir string) (*config.CredentialStore, error) {
	method := config.SecurityMethod(cfg.Security.CredentialStorage)
	var enc *config.EncryptionManager
	if method == config.SecuritySSHKey {
		var err error
		enc, err = config.NewEncryptionManager(config.ExpandPath(cfg.Security.SSHKeyPath))
		if err != nil {
			return nil, fmt.Errorf("credential encryption: %w", err)
		}
	}

	creds, err := config.NewCredentialStore(method, enc)
	if err != nil {
		return nil, err
	}
	if err := creds.Load(dataDir); err != nil {
		return nil, err
	}
	return creds, nil
}

func shutdownToolProviders(logger *zap.Logger) {
	if processManager == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := processManager.Shutdown(ctx); err != nil {
		logger.Warn("tool provider shutdown", zap.Error(err))
	}
}
