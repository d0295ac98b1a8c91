package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"atlasd/config"
)

const defaultPlaceholderQuery = "Please provide a search query"

// toolCaller is the slice of the process manager the dispatcher needs.
type toolCaller interface {
	CallTool(ctx context.Context, providerID, toolName string, args map[string]any) (*mcptypes.CallToolResult, error)
}

type toolEntry struct {
	providerID  string
	toolName    string
	tool        mcptypes.Tool
	placeholder string
	timeout     time.Duration
}

// Dispatcher routes tool invocations from the completion layer to their
// owning provider. Tools are registered under namespaced names
// ("providerID.toolName") so names from different providers cannot collide.
type Dispatcher struct {
	caller   toolCaller
	logger   *zap.Logger
	mu       sync.RWMutex
	registry map[string]toolEntry
}

func NewDispatcher(caller toolCaller, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		caller:   caller,
		logger:   logger,
		registry: make(map[string]toolEntry),
	}
}

// RegisterProvider adds a provider's tools to the registry under namespaced
// names. Re-registering a provider replaces its previous entries.
func (d *Dispatcher) RegisterProvider(cfg config.ToolProviderConfig, tools []mcptypes.Tool) {
	placeholder := cfg.PlaceholderQuery
	if placeholder == "" {
		placeholder = defaultPlaceholderQuery
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for name, entry := range d.registry {
		if entry.providerID == cfg.ID {
			delete(d.registry, name)
		}
	}

	for _, tool := range tools {
		d.registry[cfg.ID+"."+tool.Name] = toolEntry{
			providerID:  cfg.ID,
			toolName:    tool.Name,
			tool:        tool,
			placeholder: placeholder,
			timeout:     cfg.Timeout(),
		}
	}
}

// Tools returns the registered tools with namespaced names, sorted for a
// stable ordering across calls.
func (d *Dispatcher) Tools() []mcptypes.Tool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.registry))
	for name := range d.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]mcptypes.Tool, 0, len(names))
	for _, name := range names {
		tool := d.registry[name].tool
		tool.Name = name
		tools = append(tools, tool)
	}
	return tools
}

// Invoke calls the named tool and returns its formatted textual result.
// An unknown tool name is an error. Provider-side failures are returned as
// readable text, not errors, so a failed tool call degrades to a visible
// message in the conversation instead of aborting the response.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	d.mu.RLock()
	entry, ok := d.registry[name]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	args = d.fillPlaceholders(entry, args)

	ctx, cancel := context.WithTimeout(ctx, entry.timeout)
	defer cancel()

	d.logger.Debug("dispatching tool call",
		zap.String("tool", name),
		zap.String("provider", entry.providerID))

	result, err := d.caller.CallTool(ctx, entry.providerID, entry.toolName, args)
	if err != nil {
		d.logger.Warn("tool call failed",
			zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("Tool %s failed: %v", name, err), nil
	}

	text := normalizeResult(result)
	if result.IsError {
		return fmt.Sprintf("Tool %s returned an error: %s", name, text), nil
	}
	return FormatToolResult(text), nil
}

// fillPlaceholders substitutes the provider's placeholder query for required
// string arguments the model omitted or left empty. Models occasionally call
// tools with incomplete arguments; a placeholder produces a useful "please
// clarify" tool response instead of a provider error.
func (d *Dispatcher) fillPlaceholders(entry toolEntry, args map[string]any) map[string]any {
	filled := make(map[string]any, len(args))
	for k, v := range args {
		filled[k] = v
	}

	for _, required := range entry.tool.InputSchema.Required {
		prop, ok := entry.tool.InputSchema.Properties[required].(map[string]any)
		if !ok || prop["type"] != "string" {
			continue
		}
		v, present := filled[required]
		if !present {
			filled[required] = entry.placeholder
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			filled[required] = entry.placeholder
		}
	}
	return filled
}

// normalizeResult flattens a tool result to text: text content blocks are
// concatenated; anything else is serialized to JSON.
func normalizeResult(result *mcptypes.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		switch tc := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, tc.Text)
		case *mcptypes.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	raw, err := json.Marshal(result.Content)
	if err != nil {
		return fmt.Sprintf("%v", result.Content)
	}
	return string(raw)
}
