package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wascrape.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wascrape")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// BrowserDataDir returns the browser user-data directory for a profile.
// It is the opaque session store: cookies and local storage live here
// and are never inspected by this program.
func BrowserDataDir(name string) string {
	return filepath.Join(Dir(name), "browser")
}

// DBPath returns the app-owned wascrape.db path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "wascrape.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the collector log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wascraped.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		BrowserDataDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
