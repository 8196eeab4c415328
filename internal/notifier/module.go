package notifier

import (
	"context"
	"log/slog"

	"github.com/alex-galey/restricted-domains/internal/i18n"
	"github.com/alex-galey/restricted-domains/internal/restricteddomains"
	"github.com/alex-galey/restricted-domains/pkg/config"
	"go.uber.org/fx"
)

// NewBridgeFromConfig creates the host bridge with the configured windows.
func NewBridgeFromConfig(cfg config.NotificationsConfig) *Bridge {
	return NewBridge(cfg.Windows)
}

// NewFromConfig wires a notifier to the bridge.
func NewFromConfig(source DomainSource, bridge *Bridge, catalog *i18n.Catalog, cfg config.NotificationsConfig, logger *slog.Logger) (*Notifier, error) {
	return New(source, bridge, bridge.Windows(), bridge.Notifications(), catalog, Config{
		HelpURL: cfg.HelpURL,
		Locale:  cfg.Locale,
	}, logger.With("component", "notifier"))
}

var Module = fx.Module("notifier",
	fx.Provide(
		NewBridgeFromConfig,
		func(r *restricteddomains.Reconciler) DomainSource { return r },
		NewFromConfig,
	),
	fx.Invoke(func(n *Notifier, lc fx.Lifecycle, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := n.Start(ctx); err != nil {
					logger.Warn("Failed to notify on open tabs", "error", err)
				}
				return nil
			},
			OnStop: func(context.Context) error {
				n.Stop()
				return nil
			},
		})
	}),
)
