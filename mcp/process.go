package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"atlasd/config"
)

const mcpProtocolVersion = "2025-06-18"

// ProcessManager owns the lifecycle of tool provider connections. Local
// providers run as stdio subprocesses speaking JSON-RPC; remote providers are
// reached over streamable HTTP. Both expose the same client interface once
// initialized.
type ProcessManager struct {
	processes map[string]*providerProcess
	logger    *zap.Logger
	mu        sync.RWMutex
}

func NewProcessManager(logger *zap.Logger) *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*providerProcess),
		logger:    logger,
	}
}

// StartProvider connects to the provider described by cfg, initializes the
// MCP session, and caches its tool list.
func (pm *ProcessManager) StartProvider(ctx context.Context, cfg config.ToolProviderConfig) error {
	pm.mu.Lock()
	if proc := pm.processes[cfg.ID]; proc != nil && proc.Running {
		pm.mu.Unlock()
		return fmt.Errorf("provider %s already running", cfg.ID)
	}
	pm.mu.Unlock()

	var (
		mcpClient   *client.Client
		capturedCmd *exec.Cmd
		err         error
	)

	remote := cfg.Transport == config.TransportStreamableHTTP
	switch cfg.Transport {
	case config.TransportStreamableHTTP:
		mcpClient, err = pm.createHTTPClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to remote provider %s: %w", cfg.ID, err)
		}
	case config.TransportStdio, "":
		mcpClient, capturedCmd, err = pm.createStdioClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to start local provider %s: %w", cfg.ID, err)
		}
	default:
		return fmt.Errorf("unknown transport %q for provider %s", cfg.Transport, cfg.ID)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcpProtocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "atlasd",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize provider %s: %w", cfg.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	pm.mu.Lock()
	pm.processes[cfg.ID] = &providerProcess{
		ID:      cfg.ID,
		Process: capturedCmd,
		Client:  mcpClient,
		Tools:   toolsResult.Tools,
		Running: true,
		Remote:  remote,
		URL:     cfg.URL,
	}
	pm.mu.Unlock()

	pm.logger.Info("tool provider started",
		zap.String("provider", cfg.ID),
		zap.String("transport", cfg.Transport),
		zap.Int("tools", len(toolsResult.Tools)))

	return nil
}

func (pm *ProcessManager) createStdioClient(ctx context.Context, cfg config.ToolProviderConfig) (*client.Client, *exec.Cmd, error) {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		env,
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil {
		pm.logger.Debug("started provider subprocess",
			zap.String("provider", cfg.ID),
			zap.Int("pid", capturedCmd.Process.Pid))
	}

	return mcpClient, capturedCmd, nil
}

func (pm *ProcessManager) createHTTPClient(ctx context.Context, cfg config.ToolProviderConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Env) > 0 {
		headers := make(map[string]string, len(cfg.Env))
		for k, v := range cfg.Env {
			headers[k] = v
		}
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	// Transport must be started before Initialize/ListTools.
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	return mcpClient, nil
}

// StopProvider closes the provider's client and, for local providers, kills
// the subprocess if the close hangs.
func (pm *ProcessManager) StopProvider(ctx context.Context, providerID string) error {
	pm.mu.Lock()
	proc, exists := pm.processes[providerID]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("provider %s not found", providerID)
	}
	proc.Running = false
	delete(pm.processes, providerID)
	pm.mu.Unlock()

	clientClosed := false
	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- proc.Client.Close()
		}()

		select {
		case err := <-closeDone:
			if err != nil {
				pm.logger.Warn("error closing provider client",
					zap.String("provider", providerID), zap.Error(err))
			} else {
				clientClosed = true
			}
		case <-closeCtx.Done():
			pm.logger.Warn("provider client close timed out",
				zap.String("provider", providerID))
		}
	}

	if !clientClosed && !proc.Remote && proc.Process != nil && proc.Process.Process != nil {
		if err := proc.Process.Process.Kill(); err != nil {
			pm.logger.Warn("error killing provider process",
				zap.String("provider", providerID), zap.Error(err))
		}
	}

	pm.logger.Info("tool provider stopped", zap.String("provider", providerID))
	return nil
}

// GetTools returns the cached tool list for a running provider.
func (pm *ProcessManager) GetTools(providerID string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[providerID]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("provider %s not running", providerID)
	}
	return proc.Tools, nil
}

// CallTool forwards a tool call to the named provider.
func (pm *ProcessManager) CallTool(ctx context.Context, providerID, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	pm.mu.RLock()
	proc, exists := pm.processes[providerID]
	pm.mu.RUnlock()

	if !exists || !proc.Running {
		return nil, fmt.Errorf("provider %s not running", providerID)
	}

	return proc.Client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	})
}

// Shutdown stops all providers in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	pm.mu.Lock()
	providerIDs := make([]string, 0, len(pm.processes))
	for id := range pm.processes {
		providerIDs = append(providerIDs, id)
	}
	pm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(providerIDs))
	for _, id := range providerIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.StopProvider(ctx, id); err != nil {
				errChan <- err
			}
		}(id)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
