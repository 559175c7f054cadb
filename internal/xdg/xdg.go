// ABOUTME: XDG Base Directory support for the engine's config, data and cache files
// ABOUTME: Expands ~ and $XDG_* prefixes in configured paths with HOME fallback

package xdg

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory created under each XDG base.
const AppName = "rpc-engine"

type base struct {
	env      string
	fallback []string
}

var (
	configBase = base{"XDG_CONFIG_HOME", []string{".config"}}
	dataBase   = base{"XDG_DATA_HOME", []string{".local", "share"}}
	cacheBase  = base{"XDG_CACHE_HOME", []string{".cache"}}
)

// dir returns the base directory, not app-specific.
func (b base) dir() string {
	if d := os.Getenv(b.env); d != "" {
		return d
	}
	return filepath.Join(append([]string{getHome()}, b.fallback...)...)
}

// ConfigHome returns ~/.config/rpc-engine or respects XDG_CONFIG_HOME.
func ConfigHome() string { return filepath.Join(configBase.dir(), AppName) }

// DataHome returns ~/.local/share/rpc-engine or respects XDG_DATA_HOME.
func DataHome() string { return filepath.Join(dataBase.dir(), AppName) }

// CacheHome returns ~/.cache/rpc-engine or respects XDG_CACHE_HOME.
func CacheHome() string { return filepath.Join(cacheBase.dir(), AppName) }

// ConfigFile is the default location of the config file.
func ConfigFile() string { return filepath.Join(ConfigHome(), "config.yaml") }

// ExpandPath expands a leading ~/ or $XDG_* variable in a config path.
// Variables expand to their base directories, so "$XDG_DATA_HOME/rpc-engine"
// names the same place as DataHome().
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(getHome(), path[2:])
	}
	// strings.HasPrefix, not filepath.HasPrefix: the latter ignores separators
	for _, b := range []base{dataBase, configBase, cacheBase} {
		if prefix := "$" + b.env; strings.HasPrefix(path, prefix) {
			return b.dir() + path[len(prefix):]
		}
	}
	return path
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &PathError{Path: dir, Err: err}
	}
	return nil
}

// PathError reports a directory that could not be created.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "cannot create directory " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// getHome returns HOME, falling back to the working directory.
func getHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
