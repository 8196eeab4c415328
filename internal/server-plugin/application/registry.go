package plugins

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alex-galey/restricted-domains/internal/server-plugin/domain"
	"go.uber.org/fx"
)

// ServerPluginRegistry holds the server plugins exposed over MCP.
type ServerPluginRegistry struct {
	plugins map[string]domain.ServerPlugin
	logger  *slog.Logger
	mu      sync.RWMutex
}

type ServerPluginRegistryParams struct {
	fx.In
	Logger        *slog.Logger
	ServerPlugins []domain.ServerPlugin `group:"server_plugins"`
}

// NewServerPluginRegistry creates a registry holding every plugin of the
// server_plugins group.
func NewServerPluginRegistry(params ServerPluginRegistryParams) *ServerPluginRegistry {
	r := &ServerPluginRegistry{
		plugins: make(map[string]domain.ServerPlugin),
		logger:  params.Logger,
	}
	for _, srvPlugin := range params.ServerPlugins {
		if err := r.Register(srvPlugin); err != nil {
			r.logger.Error("Failed to register server plugin",
				"plugin", srvPlugin.ID(),
				"error", err)
		}
	}
	return r
}

// Register registers a server plugin. IDs must be unique.
func (r *ServerPluginRegistry) Register(plugin domain.ServerPlugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[plugin.ID()]; exists {
		return fmt.Errorf("server plugin %s already registered", plugin.ID())
	}
	r.plugins[plugin.ID()] = plugin
	r.logger.Debug("ServerPlugin registered with registry",
		"plugin", plugin.ID(),
		"name", plugin.Name())
	return nil
}

// GetServerPlugins returns the registered plugins ordered by ID.
func (r *ServerPluginRegistry) GetServerPlugins() []domain.ServerPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ServerPlugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		out = append(out, plugin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// GetResourceProviders returns all plugins that provide resources
func (r *ServerPluginRegistry) GetResourceProviders() []domain.ResourceProvider {
	var providers []domain.ResourceProvider
	for _, plugin := range r.GetServerPlugins() {
		if provider, ok := plugin.(domain.ResourceProvider); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}

// GetToolProviders returns all plugins that provide tools
func (r *ServerPluginRegistry) GetToolProviders() []domain.ToolProvider {
	var providers []domain.ToolProvider
	for _, plugin := range r.GetServerPlugins() {
		if provider, ok := plugin.(domain.ToolProvider); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}
