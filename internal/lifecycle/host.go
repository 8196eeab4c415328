// Package lifecycle delivers startup, shutdown and uninstall events to the
// registered extensions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.uber.org/fx"
)

// ErrExtensionNotFound is returned when uninstalling an unknown extension.
var ErrExtensionNotFound = errors.New("extension not found")

// Host manages the registered extensions
type Host struct {
	logger *slog.Logger

	extensions map[string]Extension
	running    map[string]bool
	mu         sync.RWMutex
}

type HostParams struct {
	fx.In
	Logger     *slog.Logger
	Extensions []Extension `group:"extensions"`
}

// NewHost creates a host with the extensions provided to the fx group.
func NewHost(params HostParams) *Host {
	h := &Host{
		logger:     params.Logger,
		extensions: make(map[string]Extension),
		running:    make(map[string]bool),
	}
	for _, ext := range params.Extensions {
		if err := h.Register(ext); err != nil {
			h.logger.Error("Failed to register extension", "extension", ext.ID(), "error", err)
		}
	}
	return h
}

// Register adds an extension. It is not started until Startup runs.
func (h *Host) Register(ext Extension) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.extensions[ext.ID()]; exists {
		return fmt.Errorf("extension %s already registered", ext.ID())
	}
	h.extensions[ext.ID()] = ext
	h.logger.Debug("Extension registered", "extension", ext.ID())
	return nil
}

// RegisterHooks connects the host to the Fx application lifecycle.
func (h *Host) RegisterHooks(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			h.logger.Info("Extension host starting...")
			h.Startup(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			h.logger.Info("Extension host stopping...")
			h.Shutdown(ctx)
			return nil
		},
	})
}

// Startup starts every registered extension that is not running. A failing
// extension is logged and does not prevent the others from starting.
func (h *Host) Startup(ctx context.Context) {
	for _, ext := range h.sorted() {
		if h.IsRunning(ext.ID()) {
			continue
		}
		if err := ext.OnStartup(ctx); err != nil {
			h.logger.Error("Extension startup failed", "extension", ext.ID(), "error", err)
		}
		// A failed startup still needs a shutdown to release observers.
		h.setRunning(ext.ID(), true)
		h.logger.Info("Extension started", "extension", ext.ID())
	}
}

// Shutdown stops every running extension.
func (h *Host) Shutdown(ctx context.Context) {
	for _, ext := range h.sorted() {
		if !h.IsRunning(ext.ID()) {
			continue
		}
		if err := ext.OnShutdown(ctx); err != nil {
			h.logger.Error("Extension shutdown failed", "extension", ext.ID(), "error", err)
		}
		h.setRunning(ext.ID(), false)
		h.logger.Info("Extension stopped", "extension", ext.ID())
	}
}

// Uninstall broadcasts the uninstall notification for id to every observer,
// then shuts the extension down and forgets it.
func (h *Host) Uninstall(ctx context.Context, id string) error {
	h.mu.RLock()
	ext, ok := h.extensions[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrExtensionNotFound)
	}

	var errs []error
	for _, other := range h.sorted() {
		observer, ok := other.(UninstallObserver)
		if !ok {
			continue
		}
		if err := observer.OnUninstall(ctx, id); err != nil {
			h.logger.Error("Uninstall observer failed",
				"extension", other.ID(),
				"uninstalled", id,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", other.ID(), err))
		}
	}

	if h.IsRunning(id) {
		if err := ext.OnShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: shutdown: %w", id, err))
		}
	}

	h.mu.Lock()
	delete(h.extensions, id)
	delete(h.running, id)
	h.mu.Unlock()

	h.logger.Info("Extension uninstalled", "extension", id)
	return errors.Join(errs...)
}

// IsRunning reports whether the extension has been started and not stopped.
func (h *Host) IsRunning(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running[id]
}

// IsInstalled reports whether the extension is registered.
func (h *Host) IsInstalled(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.extensions[id]
	return ok
}

// Extensions returns the ids of the registered extensions.
func (h *Host) Extensions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.extensions))
	for id := range h.extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Host) setRunning(id string, running bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.extensions[id]; ok {
		h.running[id] = running
	}
}

// sorted returns the extensions in id order so events are delivered
// deterministically.
func (h *Host) sorted() []Extension {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Extension, 0, len(h.extensions))
	for _, ext := range h.extensions {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
