package fxapp

import (
	"log"

	"github.com/alex-galey/restricted-domains/internal/i18n"
	"github.com/alex-galey/restricted-domains/internal/lifecycle"
	"github.com/alex-galey/restricted-domains/internal/notifier"
	"github.com/alex-galey/restricted-domains/internal/prefs"
	"github.com/alex-galey/restricted-domains/internal/restricteddomains"
	"github.com/alex-galey/restricted-domains/internal/server"
	"github.com/alex-galey/restricted-domains/internal/server-plugins/domains"
	"github.com/alex-galey/restricted-domains/pkg/config"
	"github.com/alex-galey/restricted-domains/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Options returns the application graph for cfg.
func Options(cfg *config.ServerConfig) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		config.Module,
		logger.Module,
		prefs.Module,
		i18n.Module,
		restricteddomains.Module,
		// Extensions start before the notifier scans open tabs.
		lifecycle.Module,
		notifier.Module,
		server.Module,
		domains.Module,
	)
}

func New() *fx.App {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Default to a verbose logger for debug level
	var fxLogger fx.Option = fx.WithLogger(
		func() fxevent.Logger {
			return &fxevent.ConsoleLogger{W: log.Writer()}
		},
	)

	if cfg.LogLevel != "debug" {
		fxLogger = fx.NopLogger
	}

	return fx.New(
		fxLogger,
		fx.StopTimeout(cfg.ShutdownTimeout),
		Options(cfg),
	)
}
