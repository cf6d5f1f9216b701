package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// DefaultToggleShortcut is the Shortcuts.app shortcut run when no explicit
// enable/disable shortcuts are configured.
const DefaultToggleShortcut = "Toggle Do Not Disturb"

// ShortcutConfig names the shortcuts that change notification state.
// When both Enable and Disable are set they are used; otherwise Toggle is.
type ShortcutConfig struct {
	Toggle  string `yaml:"toggle"`
	Enable  string `yaml:"enable"`
	Disable string `yaml:"disable"`
}

// DefaultShortcutConfig returns the toggle-only configuration.
func DefaultShortcutConfig() ShortcutConfig {
	return ShortcutConfig{Toggle: DefaultToggleShortcut}
}

// explicit reports whether dedicated enable/disable shortcuts are configured.
func (c ShortcutConfig) explicit() bool {
	return c.Enable != "" && c.Disable != ""
}

// ShortcutNotificationsController implements domain.NotificationController by
// running macOS Shortcuts through "Shortcuts Events".
type ShortcutNotificationsController struct {
	config ShortcutConfig
	runner CommandRunner
	logger *zap.Logger

	mu          sync.Mutex
	lastApplied domain.NotificationState // "" until known
}

// NewShortcutNotificationsController creates a controller with a real runner.
func NewShortcutNotificationsController(config ShortcutConfig, logger *zap.Logger) *ShortcutNotificationsController {
	return NewShortcutNotificationsControllerWithRunner(config, &RealCommandRunner{}, logger)
}

// NewShortcutNotificationsControllerWithRunner creates a controller with an injectable runner (for testing).
func NewShortcutNotificationsControllerWithRunner(
	config ShortcutConfig,
	runner CommandRunner,
	logger *zap.Logger,
) *ShortcutNotificationsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Toggle == "" {
		config.Toggle = DefaultToggleShortcut
	}
	c := &ShortcutNotificationsController{
		config: config,
		runner: runner,
		logger: logger,
	}
	// A toggle cannot be aimed at a state, so notifications are assumed to
	// start enabled and the first enable request is a no-op.
	if !config.explicit() {
		c.lastApplied = domain.NotificationsEnabled
	}
	return c
}

// SetNotifications runs the shortcut for desired unless it was the last state applied.
func (c *ShortcutNotificationsController) SetNotifications(ctx context.Context, desired domain.NotificationState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastApplied == desired {
		c.logger.Debug("notifications already in desired state",
			zap.String("state", string(desired)))
		return nil
	}

	shortcut := c.shortcutFor(desired)
	if err := c.runShortcut(ctx, shortcut); err != nil {
		return fmt.Errorf("set notifications %s: %w", desired, err)
	}

	c.lastApplied = desired
	c.logger.Info("notifications updated",
		zap.String("state", string(desired)),
		zap.String("shortcut", shortcut))
	return nil
}

// LastApplied returns the last state applied successfully, or "" if unknown.
func (c *ShortcutNotificationsController) LastApplied() domain.NotificationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastApplied
}

func (c *ShortcutNotificationsController) shortcutFor(desired domain.NotificationState) string {
	if !c.config.explicit() {
		return c.config.Toggle
	}
	if desired == domain.NotificationsDisabled {
		return c.config.Disable
	}
	return c.config.Enable
}

func (c *ShortcutNotificationsController) runShortcut(ctx context.Context, name string) error {
	_, err := runAppleScript(ctx, c.runner, runShortcutScript(name))
	return err
}

func runShortcutScript(name string) string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(name, `\`, `\\`), `"`, `\"`)
	return fmt.Sprintf(`tell application "System Events"
	tell application "Shortcuts Events"
		run shortcut "%s" without activating
	end tell
end tell`, escaped)
}

// ShortcutInstalled reports whether a shortcut with name exists, using the
// shortcuts CLI.
func ShortcutInstalled(ctx context.Context, runner CommandRunner, name string) (bool, error) {
	out, err := runner.Output(ctx, "shortcuts", "list")
	if err != nil {
		return false, fmt.Errorf("list shortcuts: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// Ensure ShortcutNotificationsController implements domain.NotificationController.
var _ domain.NotificationController = (*ShortcutNotificationsController)(nil)
