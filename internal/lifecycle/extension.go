package lifecycle

import "context"

// Extension is a component whose lifecycle is owned by the Host.
type Extension interface {
	ID() string
	OnStartup(ctx context.Context) error
	OnShutdown(ctx context.Context) error
}

// UninstallObserver is implemented by extensions that react to uninstall
// notifications. The notification is broadcast to every observer with the
// uninstalled extension's id; observers must ignore ids that are not theirs.
type UninstallObserver interface {
	OnUninstall(ctx context.Context, extensionID string) error
}
