package profile

import (
	"strings"
	"testing"
)

func TestPathsNestUnderProfileDir(t *testing.T) {
	dir := Dir("alpha")
	for name, p := range map[string]string{
		"LockPath":       LockPath("alpha"),
		"BrowserDataDir": BrowserDataDir("alpha"),
		"DBPath":         DBPath("alpha"),
		"LogPath":        LogPath("alpha"),
	} {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%s = %q, want prefix %q", name, p, dir)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := EnsureDir("main"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	// Second call is a no-op.
	if err := EnsureDir("main"); err != nil {
		t.Fatalf("EnsureDir() second call error = %v", err)
	}
}
