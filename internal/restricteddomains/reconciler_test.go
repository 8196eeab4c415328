//go:build !integration

package restricteddomains_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/alex-galey/restricted-domains/internal/prefs"
	rd "github.com/alex-galey/restricted-domains/internal/restricteddomains"
)

const extensionID = "addons-restricted-domains@mozilla.com"

// interleavingStore runs onWrite on another goroutine right after the next
// write to the shared preference, and waits for it to finish.
type interleavingStore struct {
	*prefs.MemoryStore
	onWrite func()
}

func (s *interleavingStore) SetString(name, v string) error {
	err := s.MemoryStore.SetString(name, v)
	if hook := s.onWrite; hook != nil && name == rd.RestrictedDomainsPref {
		s.onWrite = nil
		done := make(chan struct{})
		go func() {
			defer close(done)
			hook()
		}()
		<-done
	}
	return err
}

var _ = Describe("Reconciler", func() {
	var (
		ctx   context.Context
		store *prefs.MemoryStore
	)

	newReconciler := func(domains ...string) *rd.Reconciler {
		r, err := rd.NewReconciler(store, rd.Config{
			ExtensionID: extensionID,
			Domains:     domains,
		}, createTestLogger())
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	restricted := func() string {
		return store.GetString(rd.RestrictedDomainsPref, "")
	}

	setRestricted := func(value string) {
		Expect(store.SetString(rd.RestrictedDomainsPref, value)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = prefs.NewMemoryStore()
	})

	Describe("construction", func() {
		It("should require an extension id", func() {
			_, err := rd.NewReconciler(store, rd.Config{Domains: []string{"example.com"}}, createTestLogger())
			Expect(err).To(MatchError(rd.ErrMissingExtensionID))
		})

		It("should require at least one domain", func() {
			_, err := rd.NewReconciler(store, rd.Config{ExtensionID: extensionID, Domains: []string{" "}}, createTestLogger())
			Expect(err).To(MatchError(rd.ErrNoDomains))
		})

		It("should expose the normalized domain list", func() {
			r := newReconciler("Example.com", "example.com", "b.org")
			Expect(r.Domains()).To(Equal([]string{"example.com", "b.org"}))
			Expect(r.ID()).To(Equal(extensionID))
			Expect(r.IsDisabled()).To(BeFalse())
		})
	})

	Describe("enable and disable", func() {
		It("should add and then remove a domain that was not restricted", func() {
			r := newReconciler("example.com")

			Expect(r.Enable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))

			Expect(r.Disable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal(""))
		})

		It("should preserve a domain that was already restricted", func() {
			setRestricted("example.com")
			r := newReconciler("example.com")

			Expect(r.Enable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
			Expect(r.State().DomainsToPreserve).To(Equal([]string{"example.com"}))

			Expect(r.Disable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
		})

		It("should be idempotent", func() {
			setRestricted("a.com")
			r := newReconciler("example.com", "b.org")

			Expect(r.Enable(ctx)).To(Succeed())
			once := restricted()
			Expect(r.Enable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal(once))
		})

		It("should not write when nothing is missing", func() {
			setRestricted("example.com,other.com")
			r := newReconciler("example.com")

			writes := 0
			store.Observe(rd.RestrictedDomainsPref, func(string) { writes++ })

			Expect(r.Enable(ctx)).To(Succeed())
			Expect(writes).To(Equal(0))
		})

		It("should be a no-op to disable before any enable", func() {
			setRestricted("example.com,other.com")
			r := newReconciler("example.com")

			Expect(r.Disable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com,other.com"))
		})

		It("should capture the snapshot only once", func() {
			r := newReconciler("example.com")
			Expect(r.Enable(ctx)).To(Succeed())

			// Someone else restricts the domain after the first enable.
			setRestricted("example.com")
			Expect(r.Enable(ctx)).To(Succeed())
			Expect(r.State().DomainsToPreserve).To(BeEmpty())

			// Documented limitation: the late writer loses the domain.
			Expect(r.Disable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal(""))
		})

		It("should clear the snapshot once a disable consumed it", func() {
			r := newReconciler("example.com")
			Expect(r.Enable(ctx)).To(Succeed())
			Expect(r.Disable(ctx)).To(Succeed())

			Expect(r.State().SnapshotInitialized).To(BeFalse())
		})

		DescribeTable("round trips to the initial contents",
			func(initial string, domains []string, enabled string, preserved []string) {
				setRestricted(initial)
				r := newReconciler(domains...)

				Expect(r.Enable(ctx)).To(Succeed())
				Expect(restricted()).To(Equal(enabled))
				for _, d := range domains {
					Expect(rd.ParseDomainList(restricted())).To(ContainElement(d))
				}
				Expect(r.State().DomainsToPreserve).To(ConsistOf(preserved))

				Expect(r.Disable(ctx)).To(Succeed())
				Expect(restricted()).To(Equal(rd.JoinDomainList(rd.ParseDomainList(initial))))
			},
			Entry("empty pref", "", []string{"example.com"}, "example.com", []string{}),
			Entry("unrelated domains", "a.com,b.com", []string{"example.com"}, "a.com,b.com,example.com", []string{}),
			Entry("partial overlap", "a.com,b.com", []string{"b.com", "c.com"}, "a.com,b.com,c.com", []string{"b.com"}),
			Entry("full overlap", "c.com,b.com", []string{"b.com", "c.com"}, "c.com,b.com", []string{"b.com", "c.com"}),
			Entry("duplicates in pref", "a.com,a.com", []string{"example.com"}, "a.com,example.com", []string{}),
		)
	})

	Describe("locked preference", func() {
		BeforeEach(func() {
			Expect(store.SetDefaultString(rd.RestrictedDomainsPref, "policy.com")).To(Succeed())
			Expect(store.Lock(rd.RestrictedDomainsPref)).To(Succeed())
		})

		It("should write through the default layer and keep the lock", func() {
			r := newReconciler("example.com")

			Expect(r.Enable(ctx)).To(Succeed())
			Expect(store.IsLocked(rd.RestrictedDomainsPref)).To(BeTrue())
			Expect(restricted()).To(Equal("policy.com,example.com"))

			Expect(r.Disable(ctx)).To(Succeed())
			Expect(store.IsLocked(rd.RestrictedDomainsPref)).To(BeTrue())
			Expect(restricted()).To(Equal("policy.com"))
		})

		It("should not leave a user value behind", func() {
			Expect(rd.WriteRestrictedDomains(store, []string{"policy.com", "x.com", "x.com"})).To(Succeed())

			Expect(store.Unlock(rd.RestrictedDomainsPref)).To(Succeed())
			Expect(store.GetString(rd.RestrictedDomainsPref, "")).To(Equal("policy.com,x.com"))
		})
	})

	Describe("lifecycle", func() {
		It("should register domains on startup", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
			Expect(r.State().Enabled).To(BeTrue())
		})

		It("should restore domains removed by an external writer", func() {
			setRestricted("a.com")
			r := newReconciler("example.com", "b.org")
			Expect(r.OnStartup(ctx)).To(Succeed())

			setRestricted("")
			Expect(rd.ParseDomainList(restricted())).To(ConsistOf("example.com", "b.org"))

			setRestricted("z.com")
			Expect(restricted()).To(Equal("z.com,example.com,b.org"))
		})

		It("should restore domains when reconciling explicitly", func() {
			r := newReconciler("example.com")
			Expect(r.Enable(ctx)).To(Succeed())

			setRestricted("")
			Expect(r.ReconcileOnExternalChange(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
		})

		It("should stop reacting to external writes after shutdown", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.OnShutdown(ctx)).To(Succeed())

			setRestricted("")
			Expect(restricted()).To(Equal(""))
		})

		It("should ignore uninstall notifications for other extensions", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())

			Expect(r.OnUninstall(ctx, "other@example.org")).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
		})

		It("should remove its domains and forget its preferences on uninstall", func() {
			setRestricted("a.com")
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())

			Expect(r.OnUninstall(ctx, extensionID)).To(Succeed())
			Expect(restricted()).To(Equal("a.com"))
			Expect(store.PrefType(rd.ScopedPrefName(extensionID, "domainsToPreserve"))).To(Equal(prefs.PrefInvalid))
			Expect(store.PrefType(rd.ScopedPrefName(extensionID, "disabled"))).To(Equal(prefs.PrefInvalid))

			// A fresh install recomputes the snapshot.
			setRestricted("a.com,example.com")
			reinstalled := newReconciler("example.com")
			Expect(reinstalled.OnStartup(ctx)).To(Succeed())
			Expect(reinstalled.State().DomainsToPreserve).To(Equal([]string{"example.com"}))
		})

		It("should report whether it is installed", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.IsInstalled()).To(BeTrue())

			Expect(r.Uninstall(ctx)).To(Succeed())
			Expect(r.IsInstalled()).To(BeFalse())

			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.IsInstalled()).To(BeTrue())
		})

		It("should restore domains removed by a writer racing its own write", func() {
			interleaved := &interleavingStore{MemoryStore: store}
			r, err := rd.NewReconciler(interleaved, rd.Config{
				ExtensionID: extensionID,
				Domains:     []string{"example.com"},
			}, createTestLogger())
			Expect(err).NotTo(HaveOccurred())
			Expect(r.OnStartup(ctx)).To(Succeed())

			var hookErr error
			interleaved.onWrite = func() {
				hookErr = store.SetString(rd.RestrictedDomainsPref, "other.com")
			}
			setRestricted("")
			Expect(hookErr).NotTo(HaveOccurred())

			Expect(restricted()).To(Equal("other.com,example.com"))
		})
	})

	Describe("disabled toggle", func() {
		It("should be a no-op when disabled before the first activation", func() {
			setRestricted("a.com")
			Expect(store.SetBool(rd.ScopedPrefName(extensionID, "disabled"), true)).To(Succeed())

			r := newReconciler("example.com")
			Expect(r.IsDisabled()).To(BeTrue())
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("a.com"))

			Expect(r.OnUninstall(ctx, extensionID)).To(Succeed())
			Expect(restricted()).To(Equal("a.com"))
		})

		It("should unregister domains when disabled while stopped", func() {
			setRestricted("a.com")
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.OnShutdown(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("a.com,example.com"))

			Expect(r.SetDisabled(ctx, true)).To(Succeed())

			restarted := newReconciler("example.com")
			Expect(restarted.OnStartup(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("a.com"))
			Expect(restarted.State().Enabled).To(BeFalse())
			Expect(store.PrefType(rd.ScopedPrefName(extensionID, "domainsToPreserve"))).To(Equal(prefs.PrefInvalid))
		})

		It("should unregister and re-register domains", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())

			Expect(r.SetDisabled(ctx, true)).To(Succeed())
			Expect(r.IsDisabled()).To(BeTrue())
			Expect(restricted()).To(Equal(""))

			Expect(r.SetDisabled(ctx, false)).To(Succeed())
			Expect(restricted()).To(Equal("example.com"))
		})

		It("should not fight external writers while disabled", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.SetDisabled(ctx, true)).To(Succeed())

			setRestricted("z.com")
			Expect(restricted()).To(Equal("z.com"))
		})

		It("should apply toggles written directly to the preference", func() {
			r := newReconciler("example.com")
			Expect(r.OnStartup(ctx)).To(Succeed())

			Expect(store.SetBool(rd.ScopedPrefName(extensionID, "disabled"), true)).To(Succeed())
			Expect(restricted()).To(Equal(""))
			Expect(r.State().Enabled).To(BeFalse())
		})

		It("should notify listeners only when re-enabled", func() {
			r := newReconciler("example.com")
			calls := 0
			r.OnEnabled(func(context.Context) error {
				calls++
				return nil
			})

			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(calls).To(Equal(0))

			Expect(r.SetDisabled(ctx, true)).To(Succeed())
			Expect(r.SetDisabled(ctx, false)).To(Succeed())
			Expect(calls).To(Equal(1))

			Expect(r.SetDisabled(ctx, false)).To(Succeed())
			Expect(calls).To(Equal(1))
		})

		It("should isolate failing listeners", func() {
			r := newReconciler("example.com")
			var reached bool
			r.OnEnabled(func(context.Context) error { panic("boom") })
			r.OnEnabled(func(context.Context) error { return errors.New("failed") })
			r.OnEnabled(func(context.Context) error {
				reached = true
				return nil
			})

			Expect(store.SetBool(rd.ScopedPrefName(extensionID, "disabled"), true)).To(Succeed())
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.SetDisabled(ctx, false)).To(Succeed())
			Expect(reached).To(BeTrue())
		})
	})

	Describe("domain list changes", func() {
		It("should unregister dropped domains and preserve new ones already present", func() {
			r := newReconciler("example.com", "old.org")
			Expect(r.OnStartup(ctx)).To(Succeed())
			Expect(r.OnShutdown(ctx)).To(Succeed())

			setRestricted("example.com,old.org,new.net")
			upgraded := newReconciler("example.com", "new.net")
			Expect(upgraded.OnStartup(ctx)).To(Succeed())

			Expect(restricted()).To(Equal("example.com,new.net"))
			Expect(upgraded.State().DomainsToPreserve).To(Equal([]string{"new.net"}))

			Expect(upgraded.Disable(ctx)).To(Succeed())
			Expect(restricted()).To(Equal("new.net"))
		})
	})
})
