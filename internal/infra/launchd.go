package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// The daemon must run in the user's GUI session to see the frontmost app,
// so only a LaunchAgent is supported.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>
    </array>

    <key>EnvironmentVariables</key>
    <dict>
        <key>AUTOFOCUS_DATA_DIR</key>
        <string>{{.DataDir}}</string>
    </dict>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	DataDir        string
	LogPath        string
	ErrorLogPath   string
}

// LaunchdManagerImpl implements domain.LaunchAgentManager for the user's LaunchAgent.
type LaunchdManagerImpl struct {
	paths  Paths
	runner CommandRunner
}

// NewLaunchAgentManager creates a LaunchAgent manager for paths.
func NewLaunchAgentManager(paths Paths) *LaunchdManagerImpl {
	return NewLaunchAgentManagerWithRunner(paths, &RealCommandRunner{})
}

// NewLaunchAgentManagerWithRunner creates a manager with an injectable runner (for testing).
func NewLaunchAgentManagerWithRunner(paths Paths, runner CommandRunner) *LaunchdManagerImpl {
	return &LaunchdManagerImpl{paths: paths, runner: runner}
}

// generatePlistContent renders the plist for execPath.
func (m *LaunchdManagerImpl) generatePlistContent(execPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		DataDir:        m.paths.DataDir,
		LogPath:        m.paths.LogPath,
		ErrorLogPath:   m.paths.ErrorLogPath,
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist and loads it. An existing agent is reloaded.
func (m *LaunchdManagerImpl) Install(execPath string) error {
	if err := os.MkdirAll(m.paths.PlistDir, 0755); err != nil {
		return fmt.Errorf("create LaunchAgents directory: %w", err)
	}

	content, err := m.generatePlistContent(execPath)
	if err != nil {
		return err
	}

	if m.IsInstalled() {
		_ = m.launchctl("unload")
	}
	if err := os.WriteFile(m.paths.PlistPath, content, 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}
	return m.launchctl("load")
}

// Uninstall unloads and removes the plist.
func (m *LaunchdManagerImpl) Uninstall() error {
	if !m.IsInstalled() {
		return nil
	}
	// Ignore errors when the agent is not loaded.
	_ = m.launchctl("unload")
	if err := os.Remove(m.paths.PlistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}

// IsInstalled checks if the plist exists.
func (m *LaunchdManagerImpl) IsInstalled() bool {
	_, err := os.Stat(m.paths.PlistPath)
	return err == nil
}

// NeedsUpdate reports whether the installed plist differs from what Install would write.
func (m *LaunchdManagerImpl) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(m.paths.PlistPath)
	if err != nil {
		return true
	}
	expected, err := m.generatePlistContent(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// GetPlistPath returns the plist file path.
func (m *LaunchdManagerImpl) GetPlistPath() string {
	return m.paths.PlistPath
}

// launchctl runs `launchctl <verb> <plist>`.
// `load`/`unload` are deprecated but still work for per-user agents.
func (m *LaunchdManagerImpl) launchctl(verb string) error {
	if _, err := m.runner.Output(context.Background(), "launchctl", verb, m.paths.PlistPath); err != nil {
		return fmt.Errorf("launchctl %s: %w", verb, err)
	}
	return nil
}

// Ensure LaunchdManagerImpl implements domain.LaunchAgentManager.
var _ domain.LaunchAgentManager = (*LaunchdManagerImpl)(nil)
