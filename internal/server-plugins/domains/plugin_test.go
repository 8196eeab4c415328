//go:build !integration

package domains_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/alex-galey/restricted-domains/internal/i18n"
	"github.com/alex-galey/restricted-domains/internal/lifecycle"
	"github.com/alex-galey/restricted-domains/internal/notifier"
	"github.com/alex-galey/restricted-domains/internal/prefs"
	rd "github.com/alex-galey/restricted-domains/internal/restricteddomains"
	"github.com/alex-galey/restricted-domains/internal/server"
	serverDomain "github.com/alex-galey/restricted-domains/internal/server-plugin/domain"
	"github.com/alex-galey/restricted-domains/internal/server-plugins/domains"
	"github.com/alex-galey/restricted-domains/pkg/logger"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	extensionID = "addons-restricted-domains@mozilla.com"
	helpURL     = "https://support.example.org/restricted"
)

var _ = Describe("DomainsServerPlugin", func() {
	var (
		ctx        context.Context
		store      *prefs.MemoryStore
		reconciler *rd.Reconciler
		host       *lifecycle.Host
		bridge     *notifier.Bridge
		logs       *logger.RingBuffer
		plugin     *domains.DomainsServerPlugin
		tools      map[string]serverDomain.Tool
	)

	call := func(name string, args map[string]any) (server.ToolResponse, bool) {
		tool, ok := tools[name]
		Expect(ok).To(BeTrue(), "tool %s should be registered", name)

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := tool.Handler(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Content).To(HaveLen(1))

		var resp server.ToolResponse
		Expect(json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &resp)).To(Succeed())
		return resp, res.IsError
	}

	readResource := func(uri string) string {
		resources, err := plugin.GetResources(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, r := range resources {
			if r.URI != uri {
				continue
			}
			req := mcp.ReadResourceRequest{}
			req.Params.URI = uri
			contents, err := r.Handler(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(HaveLen(1))
			return contents[0].(mcp.TextResourceContents).Text
		}
		Fail("resource not found: " + uri)
		return ""
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = prefs.NewMemoryStore()
		Expect(store.SetString(rd.RestrictedDomainsPref, "policy.test")).To(Succeed())

		var err error
		reconciler, err = rd.NewReconciler(store, rd.Config{
			ExtensionID: extensionID,
			Domains:     []string{"example.com"},
		}, createTestLogger())
		Expect(err).NotTo(HaveOccurred())

		host = lifecycle.NewHost(lifecycle.HostParams{
			Logger:     createTestLogger(),
			Extensions: []lifecycle.Extension{reconciler},
		})
		host.Startup(ctx)

		catalog, err := i18n.LoadEmbedded()
		Expect(err).NotTo(HaveOccurred())
		bridge = notifier.NewBridge(1)
		n, err := notifier.New(reconciler, bridge, bridge.Windows(), bridge.Notifications(), catalog,
			notifier.Config{HelpURL: helpURL}, createTestLogger())
		Expect(err).NotTo(HaveOccurred())

		logs = logger.NewRingBuffer(10)
		plugin = domains.NewDomainsServerPlugin(reconciler, host, n, bridge, logs, createTestLogger())

		list, err := plugin.GetTools(ctx)
		Expect(err).NotTo(HaveOccurred())
		tools = make(map[string]serverDomain.Tool, len(list))
		for _, t := range list {
			Expect(t.Builder().Name).To(Equal(t.Name))
			tools[t.Name] = t
		}
	})

	It("should expose every tool", func() {
		Expect(tools).To(HaveLen(7))
		for _, name := range []string{"get_domains", "is_disabled", "set_disabled", "reconcile", "uninstall_extension", "report_tab", "click_notification"} {
			Expect(tools).To(HaveKey(name))
		}
	})

	It("should return the configured domains", func() {
		resp, isErr := call("get_domains", nil)
		Expect(isErr).To(BeFalse())
		Expect(resp.Data).To(HaveKeyWithValue("domains", ConsistOf("example.com")))
	})

	It("should toggle the disabled state", func() {
		resp, isErr := call("set_disabled", map[string]any{"disabled": true})
		Expect(isErr).To(BeFalse())
		Expect(resp.Data).To(HaveKeyWithValue("disabled", true))
		Expect(store.GetString(rd.RestrictedDomainsPref, "")).To(Equal("policy.test"))

		resp, _ = call("is_disabled", nil)
		Expect(resp.Data).To(HaveKeyWithValue("disabled", true))

		_, isErr = call("set_disabled", map[string]any{"disabled": false})
		Expect(isErr).To(BeFalse())
		Expect(store.GetString(rd.RestrictedDomainsPref, "")).To(Equal("policy.test,example.com"))
	})

	It("should reject a missing disabled argument", func() {
		resp, isErr := call("set_disabled", map[string]any{})
		Expect(isErr).To(BeTrue())
		Expect(resp.Code).To(Equal("invalid_argument"))
	})

	It("should re-add domains removed by another writer", func() {
		Expect(reconciler.OnShutdown(ctx)).To(Succeed())
		Expect(store.SetString(rd.RestrictedDomainsPref, "policy.test")).To(Succeed())
		Expect(reconciler.Enable(ctx)).To(Succeed())
		Expect(store.SetString(rd.RestrictedDomainsPref, "")).To(Succeed())

		resp, isErr := call("reconcile", nil)
		Expect(isErr).To(BeFalse())
		Expect(resp.Data).To(HaveKeyWithValue("restrictedDomains", ConsistOf("example.com")))
	})

	Describe("uninstall_extension", func() {
		It("should report unknown extensions", func() {
			resp, isErr := call("uninstall_extension", map[string]any{"id": "other@test"})
			Expect(isErr).To(BeTrue())
			Expect(resp.Code).To(Equal("extension_not_found"))
			Expect(resp.Hint).To(ContainSubstring(extensionID))
		})

		It("should remove the extension's domains", func() {
			resp, isErr := call("uninstall_extension", map[string]any{"id": extensionID})
			Expect(isErr).To(BeFalse())
			Expect(resp.Data).To(HaveKeyWithValue("installed", false))
			Expect(store.GetString(rd.RestrictedDomainsPref, "")).To(Equal("policy.test"))
			Expect(host.IsInstalled(extensionID)).To(BeFalse())
		})

		It("should stop notifying reported tabs", func() {
			_, isErr := call("uninstall_extension", map[string]any{"id": extensionID})
			Expect(isErr).To(BeFalse())

			resp, isErr := call("report_tab", map[string]any{"url": "https://example.com/page"})
			Expect(isErr).To(BeFalse())
			Expect(resp.Data).To(HaveKeyWithValue("notified", BeEmpty()))
		})
	})

	Describe("notifications", func() {
		It("should notify a reported tab and open help on click", func() {
			resp, isErr := call("report_tab", map[string]any{"url": "https://example.com/page"})
			Expect(isErr).To(BeFalse())
			Expect(resp.Data).To(HaveKeyWithValue("notified", ConsistOf("example.com")))

			var view domains.NotificationsView
			Expect(json.Unmarshal([]byte(readResource(domains.NotificationsURI)), &view)).To(Succeed())
			Expect(view.Active).To(HaveKey(notifier.NotificationID("example.com")))

			_, isErr = call("click_notification", map[string]any{"id": notifier.NotificationID("example.com")})
			Expect(isErr).To(BeFalse())
			Expect(bridge.Opened()).To(Equal([]string{helpURL}))
			Expect(bridge.ActiveNotifications()).To(BeEmpty())
		})

		It("should ignore tabs that are still loading", func() {
			resp, _ := call("report_tab", map[string]any{"url": "https://example.com/", "status": "loading"})
			Expect(resp.Data).To(HaveKeyWithValue("notified", BeEmpty()))
		})
	})

	Describe("resources", func() {
		It("should describe the reconciler state", func() {
			var view domains.StateView
			Expect(json.Unmarshal([]byte(readResource(domains.StateURI)), &view)).To(Succeed())
			Expect(view.ExtensionID).To(Equal(extensionID))
			Expect(view.Installed).To(BeTrue())
			Expect(view.Running).To(BeTrue())
			Expect(view.RestrictedDomains).To(Equal([]string{"policy.test", "example.com"}))
			Expect(view.SnapshotInitialized).To(BeTrue())
		})

		It("should serve sanitized logs", func() {
			logs.Append("level=INFO msg=visited url=https://example.com/?token=secret")
			text := readResource(domains.LogsURI)
			Expect(text).To(ContainSubstring("token=[redacted]"))
			Expect(text).NotTo(ContainSubstring("secret"))
		})
	})
})
