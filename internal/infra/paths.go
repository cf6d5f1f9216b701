package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

const (
	// LaunchdLabel identifies the daemon's LaunchAgent.
	LaunchdLabel = "com.focusd.autofocus"

	// DataDirEnv overrides the data directory.
	DataDirEnv = "AUTOFOCUS_DATA_DIR"

	defaultDataDirName = ".autofocus"
)

// Paths holds every filesystem location the daemon and CLI use.
type Paths struct {
	DataDir      string
	DBPath       string
	KeyPath      string
	ConfigPath   string
	EnvPath      string
	StatusPath   string
	LogPath      string
	ErrorLogPath string
	PlistDir     string
	PlistPath    string
}

// ResolvePaths derives all paths from dataDir. An empty dataDir falls back to
// $AUTOFOCUS_DATA_DIR, then ~/.autofocus of the real (non-sudo) user.
func ResolvePaths(dataDir string) Paths {
	home := GetRealUserHome()
	if dataDir == "" {
		dataDir = os.Getenv(DataDirEnv)
	}
	if dataDir == "" {
		dataDir = filepath.Join(home, defaultDataDirName)
	}

	plistDir := filepath.Join(home, "Library", "LaunchAgents")
	return Paths{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "autofocus.db"),
		KeyPath:      filepath.Join(dataDir, keyFileName),
		ConfigPath:   filepath.Join(dataDir, "config.yaml"),
		EnvPath:      filepath.Join(dataDir, ".env"),
		StatusPath:   filepath.Join(dataDir, "status.json"),
		LogPath:      filepath.Join(dataDir, "autofocus.log"),
		ErrorLogPath: filepath.Join(dataDir, "autofocus.error.log"),
		PlistDir:     plistDir,
		PlistPath:    filepath.Join(plistDir, LaunchdLabel+".plist"),
	}
}

// EnsureDataDir creates the data directory with owner-only permissions.
func (p Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir, 0700)
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so SUDO_USER is consulted first.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
