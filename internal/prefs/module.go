package prefs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex-galey/restricted-domains/pkg/config"
	"go.uber.org/fx"
)

// NewStoreFromConfig opens the configured preference backend.
func NewStoreFromConfig(lc fx.Lifecycle, cfg config.PrefsConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		logger.Info("Using in-memory preference store, preferences are not persisted")
		return NewMemoryStore(), nil
	case "sqlite":
		store, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Preference store opened", "path", cfg.Path)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown preference backend: %s", cfg.Backend)
	}
}

var Module = fx.Module("prefs",
	fx.Provide(NewStoreFromConfig),
)
