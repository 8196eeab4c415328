// Package domains exposes the restricted domains reconciler and the
// notification bridge as MCP tools and resources.
package domains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alex-galey/restricted-domains/internal/lifecycle"
	"github.com/alex-galey/restricted-domains/internal/notifier"
	"github.com/alex-galey/restricted-domains/internal/prefs"
	rd "github.com/alex-galey/restricted-domains/internal/restricteddomains"
	"github.com/alex-galey/restricted-domains/internal/server"
	serverDomain "github.com/alex-galey/restricted-domains/internal/server-plugin/domain"
	"github.com/alex-galey/restricted-domains/pkg/logger"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	StateURI         = "restricted-domains://state"
	NotificationsURI = "restricted-domains://notifications"
	LogsURI          = "restricted-domains://logs"

	logLines = 200
)

// DomainsServerPlugin serves the reconciler API and the host bridge.
type DomainsServerPlugin struct {
	reconciler *rd.Reconciler
	host       *lifecycle.Host
	notifier   *notifier.Notifier
	bridge     *notifier.Bridge
	logs       *logger.RingBuffer
	logger     *slog.Logger
}

// NewDomainsServerPlugin creates the plugin.
func NewDomainsServerPlugin(
	reconciler *rd.Reconciler,
	host *lifecycle.Host,
	n *notifier.Notifier,
	bridge *notifier.Bridge,
	logs *logger.RingBuffer,
	logger *slog.Logger,
) *DomainsServerPlugin {
	return &DomainsServerPlugin{
		reconciler: reconciler,
		host:       host,
		notifier:   n,
		bridge:     bridge,
		logs:       logs,
		logger:     logger,
	}
}

func (p *DomainsServerPlugin) ID() string { return "restricted-domains" }

func (p *DomainsServerPlugin) Name() string { return "Restricted Domains" }

func (p *DomainsServerPlugin) Description() string {
	return "Registers the extension's domains in the shared restricted domains preference and notifies users visiting them"
}

func (p *DomainsServerPlugin) Version() string { return "0.1.0" }

// StateView is the content of the state resource.
type StateView struct {
	rd.State
	Installed bool `json:"installed"`
	Running   bool `json:"running"`
}

// NotificationsView is the content of the notifications resource.
type NotificationsView struct {
	Active   map[string]notifier.Notification `json:"active"`
	Notified []string                         `json:"notified"`
	Opened   []string                         `json:"opened"`
	Windows  int                              `json:"windows"`
}

func (p *DomainsServerPlugin) state() StateView {
	id := p.reconciler.ID()
	return StateView{
		State:     p.reconciler.State(),
		Installed: p.host.IsInstalled(id),
		Running:   p.host.IsRunning(id),
	}
}

func (p *DomainsServerPlugin) notifications() NotificationsView {
	return NotificationsView{
		Active:   p.bridge.ActiveNotifications(),
		Notified: p.notifier.Notified(),
		Opened:   p.bridge.Opened(),
		Windows:  p.bridge.WindowCount(),
	}
}

func (p *DomainsServerPlugin) GetResources(ctx context.Context) ([]serverDomain.Resource, error) {
	return []serverDomain.Resource{
		{
			URI:         StateURI,
			Name:        "Restricted Domains State",
			Description: "Shared restricted domains preference, its lock state, the preserved snapshot and the disabled toggle",
			MIMEType:    "application/json",
			Handler:     p.handleStateResource,
		},
		{
			URI:         NotificationsURI,
			Name:        "Notifications",
			Description: "Notifications currently shown by the host bridge and the domains notified this session",
			MIMEType:    "application/json",
			Handler:     p.handleNotificationsResource,
		},
		{
			URI:         LogsURI,
			Name:        "Server Logs",
			Description: "Recent server log lines with secrets redacted",
			MIMEType:    "text/plain",
			Handler:     p.handleLogsResource,
		},
	}, nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (p *DomainsServerPlugin) handleStateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, p.state())
}

func (p *DomainsServerPlugin) handleNotificationsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, p.notifications())
}

func (p *DomainsServerPlugin) handleLogsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	lines := server.SanitizeLogLines(p.logs.GetLast(logLines))
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     strings.Join(lines, "\n"),
		},
	}, nil
}

func (p *DomainsServerPlugin) GetTools(ctx context.Context) ([]serverDomain.Tool, error) {
	tools := []serverDomain.Tool{
		{
			Name:        "get_domains",
			Description: "List the domains this extension restricts",
			Builder: func() mcp.Tool {
				return mcp.NewTool("get_domains",
					mcp.WithDescription("List the domains this extension restricts"),
				)
			},
			Handler: p.handleGetDomains,
		},
		{
			Name:        "is_disabled",
			Description: "Report whether the user disabled the extension",
			Builder: func() mcp.Tool {
				return mcp.NewTool("is_disabled",
					mcp.WithDescription("Report whether the user disabled the extension"),
				)
			},
			Handler: p.handleIsDisabled,
		},
		{
			Name:        "set_disabled",
			Description: "Disable or re-enable the extension",
			Builder: func() mcp.Tool {
				return mcp.NewTool("set_disabled",
					mcp.WithDescription("Disable or re-enable the extension. Disabling removes the domains it added; enabling registers them again."),
					mcp.WithBoolean("disabled",
						mcp.Required(),
						mcp.Description("true to disable, false to enable"),
					),
				)
			},
			Handler: p.handleSetDisabled,
		},
		{
			Name:        "reconcile",
			Description: "Re-add missing domains to the shared preference",
			Builder: func() mcp.Tool {
				return mcp.NewTool("reconcile",
					mcp.WithDescription("Re-add this extension's domains to the shared preference if another writer removed them"),
				)
			},
			Handler: p.handleReconcile,
		},
		{
			Name:        "uninstall_extension",
			Description: "Uninstall an extension from the host",
			Builder: func() mcp.Tool {
				return mcp.NewTool("uninstall_extension",
					mcp.WithDescription("Uninstall an extension. Every extension is told; the uninstalled one removes its domains and forgets its preferences."),
					mcp.WithString("id",
						mcp.Required(),
						mcp.Description("Extension identifier"),
					),
				)
			},
			Handler: p.handleUninstall,
		},
		{
			Name:        "report_tab",
			Description: "Report a browser tab update",
			Builder: func() mcp.Tool {
				return mcp.NewTool("report_tab",
					mcp.WithDescription("Report that a tab navigated or finished loading. Restricted domains are notified once per session."),
					mcp.WithString("url",
						mcp.Required(),
						mcp.Description("Tab URL"),
					),
					mcp.WithString("status",
						mcp.Description("Tab status, 'loading' or 'complete'"),
						mcp.DefaultString(notifier.TabStatusComplete),
					),
					mcp.WithNumber("id",
						mcp.Description("Tab identifier, omitted for a new tab"),
					),
				)
			},
			Handler: p.handleReportTab,
		},
		{
			Name:        "click_notification",
			Description: "Click a restricted domain notification",
			Builder: func() mcp.Tool {
				return mcp.NewTool("click_notification",
					mcp.WithDescription("Simulate a click on a notification: opens the help page and clears it"),
					mcp.WithString("id",
						mcp.Required(),
						mcp.Description("Notification identifier"),
					),
				)
			},
			Handler: p.handleClickNotification,
		},
	}

	p.logger.Debug("Domains plugin: Generated tools", "count", len(tools))
	return tools, nil
}

func (p *DomainsServerPlugin) handleGetDomains(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return server.OK("Restricted domains", map[string]any{
		"domains": p.reconciler.Domains(),
	}), nil
}

func (p *DomainsServerPlugin) handleIsDisabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return server.OK("Disabled state", map[string]any{
		"disabled": p.reconciler.IsDisabled(),
	}), nil
}

func (p *DomainsServerPlugin) handleSetDisabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	disabled, err := req.RequireBool("disabled")
	if err != nil {
		return server.Error("invalid_argument", err.Error(), "pass disabled as a boolean", nil), nil
	}

	if err := p.reconciler.SetDisabled(ctx, disabled); err != nil {
		return toolError("set_disabled_failed", err), nil
	}

	message := "Extension enabled"
	if disabled {
		message = "Extension disabled"
	}
	return server.OK(message, p.state()), nil
}

func (p *DomainsServerPlugin) handleReconcile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := p.reconciler.ReconcileOnExternalChange(ctx); err != nil {
		return toolError("reconcile_failed", err), nil
	}
	return server.OK("Restricted domains reconciled", p.state()), nil
}

func (p *DomainsServerPlugin) handleUninstall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return server.Error("invalid_argument", err.Error(), "pass the extension id", nil), nil
	}

	if err := p.host.Uninstall(ctx, id); err != nil {
		if errors.Is(err, lifecycle.ErrExtensionNotFound) {
			return server.Error("extension_not_found", err.Error(), "installed extensions: "+strings.Join(p.host.Extensions(), ", "), nil), nil
		}
		return toolError("uninstall_failed", err), nil
	}
	return server.OK("Extension uninstalled", map[string]any{
		"id":        id,
		"installed": p.host.IsInstalled(id),
	}), nil
}

func (p *DomainsServerPlugin) handleReportTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return server.Error("invalid_argument", err.Error(), "pass the tab url", nil), nil
	}

	tab := p.bridge.ReportTab(notifier.Tab{
		ID:     req.GetInt("id", 0),
		URL:    url,
		Status: req.GetString("status", notifier.TabStatusComplete),
	})

	data := map[string]any{"tab": tab}
	if err := p.notifier.HandleTabUpdated(ctx, tab); err != nil {
		p.logger.Warn("Tab notification failed", "tab", tab.ID, "error", err)
		data["error"] = err.Error()
		return server.Partial("Tab recorded, notification failed", data), nil
	}
	data["notified"] = p.notifier.Notified()
	return server.OK("Tab recorded", data), nil
}

func (p *DomainsServerPlugin) handleClickNotification(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return server.Error("invalid_argument", err.Error(), "pass the notification id", nil), nil
	}

	if err := p.notifier.HandleNotificationClicked(ctx, id); err != nil {
		return toolError("open_help_failed", err), nil
	}
	return server.OK("Help page opened", p.notifications()), nil
}

func toolError(code string, err error) *mcp.CallToolResult {
	if prefs.IsLockedError(err) {
		return server.Error("pref_locked", err.Error(), "the preference is locked by policy", nil)
	}
	return server.Error(code, err.Error(), "", nil)
}
