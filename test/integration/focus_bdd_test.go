//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autofocus/internal/daemon"
	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
	"github.com/eliteGoblin/focusd/autofocus/internal/policy"
	"github.com/eliteGoblin/focusd/autofocus/internal/usecase"
)

const (
	chromeBundle = "com.google.Chrome"
	xcodeBundle  = "com.apple.dt.Xcode"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var _ = Describe("Focus daemon", func() {
	var (
		tmpDir string
		paths  infra.Paths
		key    []byte
		store  *infra.FocusStore
		clock  *fakeClock
		desk   *desktop
		orch   *daemon.Orchestrator
		logger *zap.Logger
	)

	newOrchestrator := func() *daemon.Orchestrator {
		return daemon.NewOrchestrator(
			daemon.DefaultOrchestratorConfig(),
			clock,
			usecase.NewStateMachine(),
			daemon.Stores{Settings: store, Entities: store, Events: store, Sessions: store},
			daemon.Providers{
				Foreground:    infra.NewForegroundAppProviderWithRunner(desk),
				Domain:        infra.NewBrowserDomainProviderWithDeps(policy.NewRegistry(), desk, browsersRunning{}, logger),
				Notifications: infra.NewShortcutNotificationsControllerWithRunner(infra.DefaultShortcutConfig(), desk, logger),
			},
			logger,
		)
	}

	pollAt := func(seconds int) {
		clock.Set(start.Add(time.Duration(seconds) * time.Second))
		Expect(orch.PollOnce(context.Background())).To(BeTrue())
	}

	pollRange := func(from, to int) {
		for s := from; s <= to; s++ {
			pollAt(s)
		}
	}

	waitNotifications := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(orch.WaitForNotifications(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "autofocus-integration-*")
		Expect(err).NotTo(HaveOccurred())

		paths = infra.ResolvePaths(filepath.Join(tmpDir, "data"))
		Expect(paths.EnsureDataDir()).To(Succeed())
		key, err = infra.EnsureKey(infra.NewFileKeyProvider(paths.KeyPath))
		Expect(err).NotTo(HaveOccurred())

		store, err = infra.NewFocusStore(paths.DBPath, key)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Save(domain.FocusSettings{ActivationMinutes: 1, BufferSeconds: 10})).To(Succeed())
		Expect(store.Upsert(domain.FocusEntity{
			Type: domain.EntityTypeDomain, MatchValue: "GitHub.com", IsEnabled: true,
		})).To(Succeed())

		logger = zap.NewNop()
		clock = &fakeClock{now: start}
		desk = &desktop{}
		orch = newOrchestrator()
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("a focus session", func() {
		Context("when the user stays on a focus domain past the activation threshold", func() {
			It("should record the session and silence notifications", func() {
				desk.show(chromeBundle, "https://github.com/eliteGoblin/focusd")
				pollAt(0)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseCounting))

				pollRange(1, 60)
				phase := orch.Snapshot().State.Phase
				Expect(phase.Kind).To(Equal(domain.PhaseInFocusMode))

				session, err := store.GetSession(phase.SessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.IsOpen()).To(BeTrue())
				Expect(session.ActivationMinutes).To(Equal(1))
				Expect(session.BufferSeconds).To(Equal(10))

				waitNotifications()
				Expect(desk.ranShortcuts()).To(HaveLen(1))
			})
		})

		Context("when the user leaves and the buffer runs out", func() {
			It("should close the session with bufferTimeout", func() {
				desk.show(chromeBundle, "https://github.com/")
				pollRange(0, 60)
				sessionID := orch.Snapshot().State.Phase.SessionID

				desk.show(chromeBundle, "https://news.ycombinator.com/")
				pollAt(61)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseBuffering))

				pollRange(62, 71)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseIdle))

				session, err := store.GetSession(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.EndedReason).To(Equal(domain.EndReasonBufferTimeout))
				Expect(session.TotalSecondsInFocusMode).To(Equal(60))
				Expect(session.EndedAt.Equal(start.Add(71 * time.Second))).To(BeTrue())

				waitNotifications()
				Expect(desk.ranShortcuts()).To(HaveLen(2), "disable then enable through the toggle")

				events, err := store.RecentEvents(20)
				Expect(err).NotTo(HaveOccurred())
				kinds := make([]domain.EventKind, 0, len(events))
				for i := len(events) - 1; i >= 0; i-- {
					kinds = append(kinds, events[i].Kind)
				}
				Expect(kinds).To(Equal([]domain.EventKind{
					domain.EventForegroundChanged,
					domain.EventDomainChanged,
					domain.EventEnteredCounting,
					domain.EventEnteredFocusMode,
					domain.EventDomainChanged,
					domain.EventEnteredBuffer,
					domain.EventExitedFocusMode,
				}))
			})
		})

		Context("when the user returns within the buffer", func() {
			It("should keep the same session", func() {
				desk.show(chromeBundle, "https://github.com/")
				pollRange(0, 60)
				sessionID := orch.Snapshot().State.Phase.SessionID

				desk.show(xcodeBundle, "")
				pollRange(61, 65)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseBuffering))

				desk.show(chromeBundle, "https://github.com/pulls")
				pollAt(66)
				phase := orch.Snapshot().State.Phase
				Expect(phase.Kind).To(Equal(domain.PhaseInFocusMode))
				Expect(phase.SessionID).To(Equal(sessionID))

				sessions, err := store.RecentSessions(10)
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))
			})
		})

		Context("when the entity is disabled mid-count", func() {
			It("should fall back to idle on the next context change", func() {
				desk.show(chromeBundle, "https://github.com/")
				pollRange(0, 30)

				entities, err := store.List()
				Expect(err).NotTo(HaveOccurred())
				entity := entities[0]
				entity.IsEnabled = false
				Expect(store.Upsert(entity)).To(Succeed())

				desk.show(chromeBundle, "https://github.com/issues")
				pollAt(31)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseCounting),
					"same host is not a context change")

				desk.show(xcodeBundle, "")
				pollAt(32)
				desk.show(chromeBundle, "https://github.com/")
				pollAt(33)
				Expect(orch.Snapshot().State.Phase.Kind).To(Equal(domain.PhaseIdle))
			})
		})
	})

	Describe("shutdown and restart", func() {
		It("should end an active session as userDisabled", func() {
			desk.show(chromeBundle, "https://github.com/")
			pollRange(0, 70)
			sessionID := orch.Snapshot().State.Phase.SessionID

			Expect(orch.Shutdown()).To(Succeed())
			waitNotifications()

			session, err := store.GetSession(sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.EndedReason).To(Equal(domain.EndReasonUserDisabled))
			Expect(session.TotalSecondsInFocusMode).To(Equal(70))
			Expect(desk.ranShortcuts()).To(HaveLen(2))
		})

		It("should close sessions orphaned by a crash", func() {
			desk.show(chromeBundle, "https://github.com/")
			pollRange(0, 65)
			sessionID := orch.Snapshot().State.Phase.SessionID
			waitNotifications()

			// Simulate a crash: reopen the database without shutting down.
			Expect(store.Close()).To(Succeed())
			var err error
			store, err = infra.NewFocusStore(paths.DBPath, key)
			Expect(err).NotTo(HaveOccurred())

			closed, err := store.CloseOrphanedSessions(start.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(closed).To(Equal(1))

			session, err := store.GetSession(sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.EndedReason).To(Equal(domain.EndReasonError))

			// A fresh daemon starts idle and counts from zero.
			orch = newOrchestrator()
			pollAt(3600)
			Expect(orch.Snapshot().State.Phase).To(Equal(domain.CountingPhase(0)))
		})
	})

	Describe("status publishing", func() {
		It("should expose the latest snapshot to the CLI", func() {
			statusFile := infra.NewStatusFile(paths.StatusPath)

			desk.show(chromeBundle, "https://github.com/")
			pollRange(0, 60)
			Expect(statusFile.Write(orch.Snapshot().Status(os.Getpid()))).To(Succeed())

			status, err := statusFile.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Phase).To(Equal(domain.PhaseInFocusMode.String()))
			Expect(status.Domain).To(Equal("github.com"))
			Expect(status.AppID).To(Equal(chromeBundle))
			Expect(status.SessionStartedAt).NotTo(BeNil())
			Expect(status.IsStale(start.Add(61*time.Second), 5*time.Second)).To(BeFalse())
		})
	})
})
