package restricteddomains

import (
	"log/slog"

	"github.com/alex-galey/restricted-domains/internal/lifecycle"
	"github.com/alex-galey/restricted-domains/internal/prefs"
	"github.com/alex-galey/restricted-domains/pkg/config"
	"go.uber.org/fx"
)

// NewReconcilerFromConfig creates the reconciler for the configured extension.
func NewReconcilerFromConfig(store prefs.Store, cfg config.ExtensionConfig, logger *slog.Logger) (*Reconciler, error) {
	return NewReconciler(store, Config{
		ExtensionID: cfg.ID,
		Domains:     cfg.Domains,
	}, logger)
}

var Module = fx.Module("restricteddomains",
	fx.Provide(
		NewReconcilerFromConfig,
		fx.Annotate(
			func(r *Reconciler) lifecycle.Extension { return r },
			fx.ResultTags(`group:"extensions"`),
		),
	),
)
