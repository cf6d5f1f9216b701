package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/autofocus/internal/config"
	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current focus state",
	Long: `Shows whether the daemon is running, the current phase, the open session
and what the daemon last observed in the foreground. Use --watch to redraw
whenever the daemon publishes a new state.`,
	RunE: runStatus,
}

var watchStatus bool

func init() {
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Redraw on every state change")
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	cfg, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	view := &statusView{
		paths:      paths,
		file:       infra.NewStatusFile(paths.StatusPath),
		procMgr:    infra.NewProcessManager(),
		launchd:    infra.NewLaunchAgentManager(paths),
		staleAfter: staleThreshold(cfg),
	}

	if !watchStatus {
		view.render()
		return nil
	}
	return view.watch()
}

// staleThreshold is how old a status may get before the daemon is presumed dead.
func staleThreshold(cfg config.Config) time.Duration {
	d := 3 * cfg.PollInterval
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

type statusView struct {
	paths      infra.Paths
	file       *infra.StatusFile
	procMgr    domain.ProcessManager
	launchd    domain.LaunchAgentManager
	staleAfter time.Duration
}

func (v *statusView) render() {
	now := time.Now()
	fmt.Println("\n=== autofocus Status ===")

	status, err := v.file.Read()
	switch {
	case os.IsNotExist(err):
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'autofocus run' or 'autofocus install' to start it.")
	case err != nil:
		fmt.Printf("Daemon: UNKNOWN (%v)\n", err)
	case !v.procMgr.IsRunning(status.PID):
		fmt.Printf("Daemon: NOT RUNNING (pid %d exited %s)\n", status.PID, humanize.Time(status.UpdatedAt))
	case status.IsStale(now, v.staleAfter):
		fmt.Printf("Daemon: STALLED (pid %d, last update %s)\n", status.PID, humanize.Time(status.UpdatedAt))
		printDaemonStatus(status, now)
	default:
		fmt.Printf("Daemon: RUNNING (pid %d, updated %s)\n", status.PID, humanize.Time(status.UpdatedAt))
		printDaemonStatus(status, now)
	}

	v.printStoreSummary()

	if v.launchd.IsInstalled() {
		fmt.Println("Auto-start: enabled")
	} else {
		fmt.Println("Auto-start: disabled (run 'autofocus install')")
	}
	fmt.Println("========================")
}

func printDaemonStatus(s *domain.DaemonStatus, now time.Time) {
	fmt.Printf("\nPhase: %s\n", s.Phase)
	if s.Phase == domain.PhaseCounting.String() {
		fmt.Printf("Dwell: %s\n", formatSeconds(s.SecondsAccumulated))
	}
	if s.SessionID != "" {
		fmt.Printf("Session: %s", shortID(s.SessionID))
		if s.SessionStartedAt != nil {
			fmt.Printf(" (started %s)", humanize.Time(*s.SessionStartedAt))
		}
		fmt.Println()
		fmt.Printf("Focus time: %s\n", formatSeconds(s.FocusSeconds))
	}
	if s.BufferEndsAt != nil {
		fmt.Printf("Buffer ends: %s\n", humanize.RelTime(*s.BufferEndsAt, now, "ago", "from now"))
	}

	fmt.Printf("\nForeground app: %s\n", orDash(s.AppID))
	if s.Domain != "" {
		fmt.Printf("Domain: %s\n", s.Domain)
	} else {
		fmt.Printf("Domain: - (%s)\n", orDash(s.DomainReason))
	}
	if s.EntityID != "" {
		fmt.Printf("Matched entity: %s\n", shortID(s.EntityID))
	}
	if s.LastError != "" {
		fmt.Printf("\nLast error: %s\n", s.LastError)
	}
}

// printStoreSummary prints settings and entity counts when the store exists.
func (v *statusView) printStoreSummary() {
	if _, err := os.Stat(v.paths.DBPath); err != nil {
		return
	}
	store, err := openStore(v.paths)
	if err != nil {
		fmt.Printf("\nStore: unavailable (%v)\n", err)
		return
	}
	defer store.Close()

	if settings, err := store.Load(); err == nil {
		fmt.Printf("\nSettings: activation %s, buffer %s\n",
			formatSeconds(settings.EffectiveActivationSeconds()),
			formatSeconds(settings.EffectiveBufferSeconds()))
	}
	if entities, err := store.List(); err == nil {
		enabled := 0
		for _, e := range entities {
			if e.IsEnabled {
				enabled++
			}
		}
		fmt.Printf("Focus entities: %d enabled, %d total\n", enabled, len(entities))
	}
}

// watch redraws whenever the daemon replaces the status file.
func (v *statusView) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The status file is replaced by rename, so watch its directory.
	dir := filepath.Dir(v.file.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redraw := func() {
		fmt.Print("\033[H\033[2J")
		v.render()
	}
	redraw()

	// Also redraw periodically so a dead daemon shows up as stale.
	ticker := time.NewTicker(v.staleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name == v.file.Path() && event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
				redraw()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch status: %w", err)
		case <-ticker.C:
			redraw()
		}
	}
}

func formatSeconds(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
