package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/autofocus/internal/config"
	"github.com/eliteGoblin/focusd/autofocus/internal/daemon"
	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
	"github.com/eliteGoblin/focusd/autofocus/internal/policy"
	"github.com/eliteGoblin/focusd/autofocus/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the focus daemon in the foreground",
	Long: `Runs the focus detection loop until interrupted. The LaunchAgent installed
by 'autofocus install' runs this command at login.

On SIGINT/SIGTERM an open focus session is ended and notifications are
turned back on.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	if err := paths.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.Level()

	logger := createLogger(paths, level)
	defer func() { _ = logger.Sync() }()

	store, err := openStore(paths)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer store.Close()

	// A previous daemon that crashed may have left a session open.
	if n, err := store.CloseOrphanedSessions(time.Now()); err != nil {
		logger.Warn("failed to close orphaned sessions", zap.Error(err))
	} else if n > 0 {
		logger.Info("closed orphaned sessions", zap.Int("count", n))
	}

	orch := daemon.NewOrchestrator(
		cfg.Orchestrator(),
		domain.SystemClock{},
		usecase.NewStateMachine(),
		daemon.Stores{
			Settings: store,
			Entities: store,
			Events:   store,
			Sessions: store,
		},
		daemon.Providers{
			Foreground:    infra.NewForegroundAppProvider(),
			Domain:        infra.NewBrowserDomainProvider(policy.NewRegistry(), logger),
			Notifications: infra.NewShortcutNotificationsController(cfg.Shortcuts, logger),
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statusFile := infra.NewStatusFile(paths.StatusPath)
	snapshots, unsubscribe := orch.Subscribe()

	logger.Info("autofocus daemon starting",
		zap.String("version", Version),
		zap.String("data_dir", paths.DataDir),
		zap.Int("pid", os.Getpid()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := orch.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return publishStatus(gctx, snapshots, statusFile, logger)
	})

	runErr := g.Wait()
	unsubscribe()

	if err := orch.Shutdown(); err != nil {
		logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.NotificationTimeout)
	defer cancel()
	if err := orch.WaitForNotifications(waitCtx); err != nil {
		logger.Warn("notification request still pending at exit", zap.Error(err))
	}
	if err := statusFile.Remove(); err != nil {
		logger.Warn("failed to remove status file", zap.Error(err))
	}

	logger.Info("autofocus daemon stopped")
	return runErr
}

// publishStatus mirrors every orchestrator snapshot into the status file read by `status`.
func publishStatus(ctx context.Context, snapshots <-chan daemon.Snapshot, file *infra.StatusFile, logger *zap.Logger) error {
	pid := os.Getpid()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := file.Write(snap.Status(pid)); err != nil {
				logger.Warn("failed to write status file", zap.Error(err))
			}
		}
	}
}
