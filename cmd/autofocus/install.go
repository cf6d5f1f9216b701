package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/autofocus/internal/config"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the daemon at login (LaunchAgent)",
	Long: `Installs and loads a per-user LaunchAgent that runs 'autofocus run' at login.
The daemon must run in your GUI session to see the frontmost app, so it is
never installed system-wide.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop starting the daemon at login",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	if os.Geteuid() == 0 {
		return fmt.Errorf("install as your own user, not root")
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	paths := resolvePaths()
	if err := paths.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	manager := infra.NewLaunchAgentManager(paths)

	if manager.IsInstalled() && !manager.NeedsUpdate(execPath) {
		fmt.Printf("LaunchAgent already installed: %s\n", manager.GetPlistPath())
		return nil
	}
	if err := manager.Install(execPath); err != nil {
		return fmt.Errorf("install LaunchAgent: %w", err)
	}

	fmt.Println("\n=== autofocus Installed ===")
	fmt.Printf("Binary: %s\n", execPath)
	fmt.Printf("LaunchAgent: %s\n", manager.GetPlistPath())
	fmt.Printf("Data: %s\n", paths.DataDir)
	fmt.Println("\nmacOS will ask to allow autofocus to control System Events,")
	fmt.Println("your browsers and Shortcuts Events.")
	checkShortcuts(cmd.Context(), paths)
	fmt.Println("===========================")
	return nil
}

// checkShortcuts warns about configured notification shortcuts that do not exist.
func checkShortcuts(ctx context.Context, paths infra.Paths) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(paths)
	if err != nil {
		fmt.Printf("Warning: could not load config: %v\n", err)
		return
	}

	names := []string{cfg.Shortcuts.Toggle}
	if cfg.Shortcuts.Enable != "" {
		names = []string{cfg.Shortcuts.Enable, cfg.Shortcuts.Disable}
	}
	runner := &infra.RealCommandRunner{}
	for _, name := range names {
		ok, err := infra.ShortcutInstalled(ctx, runner, name)
		switch {
		case err != nil:
			fmt.Printf("Warning: could not list shortcuts: %v\n", err)
			return
		case !ok:
			fmt.Printf("Warning: shortcut %q not found; create it in Shortcuts.app\n", name)
		default:
			fmt.Printf("Shortcut %q: found\n", name)
		}
	}
}

func runUninstall(cmd *cobra.Command, args []string) error {
	manager := infra.NewLaunchAgentManager(resolvePaths())
	if !manager.IsInstalled() {
		fmt.Println("LaunchAgent not installed.")
		return nil
	}
	if err := manager.Uninstall(); err != nil {
		return fmt.Errorf("uninstall LaunchAgent: %w", err)
	}
	fmt.Printf("Removed %s\n", manager.GetPlistPath())
	return nil
}
