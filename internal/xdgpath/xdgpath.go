// Package xdgpath resolves the XDG base directories used by wsl-notifyd.
package xdgpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "wsl-notifyd"

func home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return home, nil
}

func getConfigHome() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".config"), nil
}

func getStateHome() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return stateHome, nil
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".local", "state"), nil
}

func getRuntimeDir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}
	// Fallback to state home if runtime dir is not available.
	return getStateHome()
}

// ConfigPath returns the path for a config file. The directory is not
// created; a missing config file means defaults.
func ConfigPath(elem ...string) (string, error) {
	base, err := getConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{base, appDir}, elem...)...), nil
}

// UserUnitPath returns the path of a systemd user unit file.
func UserUnitPath(name string) (string, error) {
	base, err := getConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "systemd", "user", name), nil
}

// RuntimePath returns the path for a runtime file, creating the directory if needed.
func RuntimePath(elem ...string) (string, error) {
	base, err := getRuntimeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// DataDirs returns $XDG_DATA_HOME followed by $XDG_DATA_DIRS, with the
// defaults from the base directory specification when unset.
func DataDirs() []string {
	var dirs []string
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		dirs = append(dirs, dataHome)
	} else if h, err := home(); err == nil {
		dirs = append(dirs, filepath.Join(h, ".local", "share"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(dataDirs, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
