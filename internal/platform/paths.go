// Package platform resolves per-user config, data, and database locations.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const defaultAppName = "initboard"

// Environment overrides for resolved paths.
const (
	EnvConfigPath = "INITBOARD_CONFIG"
	EnvDBPath     = "INITBOARD_DB_PATH"
	EnvDevMode    = "INITBOARD_DEV_MODE"
)

// Paths holds the resolved on-disk locations for one app profile.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the app profile to resolve.
type Options struct {
	AppName string
	// DevMode keeps development boards apart from the real ones.
	DevMode bool
}

// baseOverrides lists, per GOOS, the env vars that replace the config and data bases.
var baseOverrides = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths returns the production profile paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths for the running OS and user.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{}
	if keys, ok := baseOverrides[runtime.GOOS]; ok {
		env[keys.config] = os.Getenv(keys.config)
		env[keys.data] = os.Getenv(keys.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor computes paths from explicit inputs so every OS branch is testable.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if keys, ok := baseOverrides[goos]; ok {
		if v := strings.TrimSpace(env[keys.config]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[keys.data]); v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}

// WithEnvOverrides replaces config and database paths named by the environment.
// The second result reports whether the database path was overridden.
func WithEnvOverrides(p Paths, getenv func(string) string) (Paths, bool) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		p.ConfigPath = v
	}
	v := strings.TrimSpace(getenv(EnvDBPath))
	if v == "" {
		return p, false
	}
	p.DBPath = v
	return p, true
}
