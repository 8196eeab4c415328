//go:build !integration

package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/alex-galey/restricted-domains/internal/lifecycle"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// MockExtension records the lifecycle events it receives
type MockExtension struct {
	id          string
	startupErr  error
	uninstalled []string
	callCount   map[string]int
}

func NewMockExtension(id string) *MockExtension {
	return &MockExtension{id: id, callCount: make(map[string]int)}
}

func (m *MockExtension) ID() string { return m.id }

func (m *MockExtension) OnStartup(ctx context.Context) error {
	m.callCount["OnStartup"]++
	return m.startupErr
}

func (m *MockExtension) OnShutdown(ctx context.Context) error {
	m.callCount["OnShutdown"]++
	return nil
}

func (m *MockExtension) OnUninstall(ctx context.Context, id string) error {
	m.uninstalled = append(m.uninstalled, id)
	return nil
}

func (m *MockExtension) GetCallCount(method string) int {
	return m.callCount[method]
}

var _ = Describe("Host", func() {
	var (
		host  *lifecycle.Host
		alpha *MockExtension
		beta  *MockExtension
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		alpha = NewMockExtension("alpha@example.org")
		beta = NewMockExtension("beta@example.org")
		host = lifecycle.NewHost(lifecycle.HostParams{
			Logger:     createTestLogger(),
			Extensions: []lifecycle.Extension{alpha, beta},
		})
	})

	It("should register extensions from the params", func() {
		Expect(host.Extensions()).To(Equal([]string{"alpha@example.org", "beta@example.org"}))
		Expect(host.IsInstalled("alpha@example.org")).To(BeTrue())
		Expect(host.IsRunning("alpha@example.org")).To(BeFalse())
	})

	It("should reject duplicate registrations", func() {
		Expect(host.Register(NewMockExtension("alpha@example.org"))).To(HaveOccurred())
	})

	Context("when starting and stopping", func() {
		It("should start each extension once", func() {
			host.Startup(ctx)
			host.Startup(ctx)

			Expect(alpha.GetCallCount("OnStartup")).To(Equal(1))
			Expect(beta.GetCallCount("OnStartup")).To(Equal(1))
			Expect(host.IsRunning("beta@example.org")).To(BeTrue())
		})

		It("should keep starting others when one fails", func() {
			alpha.startupErr = errors.New("boom")
			host.Startup(ctx)

			Expect(beta.GetCallCount("OnStartup")).To(Equal(1))
		})

		It("should stop running extensions", func() {
			host.Startup(ctx)
			host.Shutdown(ctx)
			host.Shutdown(ctx)

			Expect(alpha.GetCallCount("OnShutdown")).To(Equal(1))
			Expect(host.IsRunning("alpha@example.org")).To(BeFalse())
		})
	})

	Context("when uninstalling", func() {
		BeforeEach(func() {
			host.Startup(ctx)
		})

		It("should broadcast the uninstalled id to every observer", func() {
			Expect(host.Uninstall(ctx, "alpha@example.org")).To(Succeed())

			Expect(alpha.uninstalled).To(Equal([]string{"alpha@example.org"}))
			Expect(beta.uninstalled).To(Equal([]string{"alpha@example.org"}))
		})

		It("should shut the extension down and forget it", func() {
			Expect(host.Uninstall(ctx, "alpha@example.org")).To(Succeed())

			Expect(alpha.GetCallCount("OnShutdown")).To(Equal(1))
			Expect(host.IsInstalled("alpha@example.org")).To(BeFalse())
			Expect(beta.GetCallCount("OnShutdown")).To(Equal(0))
		})

		It("should fail for unknown extensions", func() {
			err := host.Uninstall(ctx, "missing@example.org")
			Expect(errors.Is(err, lifecycle.ErrExtensionNotFound)).To(BeTrue())
		})
	})
})
