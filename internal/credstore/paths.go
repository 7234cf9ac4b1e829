package credstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDir is the application directory under the per-user config location.
const AppDir = "vmdisk-report"

// PathResolver locates the per-user directory credentials live in.
type PathResolver interface {
	Dir() (string, error)
}

// ResolverFor returns the resolver for the given GOOS value.
func ResolverFor(goos string) PathResolver {
	switch goos {
	case "windows":
		return appDataResolver{getenv: os.Getenv}
	case "darwin":
		return darwinResolver{home: os.UserHomeDir}
	default:
		return xdgResolver{getenv: os.Getenv, home: os.UserHomeDir}
	}
}

// DirResolver pins the credential directory to path.
type DirResolver string

func (d DirResolver) Dir() (string, error) {
	if d == "" {
		return "", fmt.Errorf("credential directory is empty")
	}
	return string(d), nil
}

type xdgResolver struct {
	getenv func(string) string
	home   func() (string, error)
}

func (r xdgResolver) Dir() (string, error) {
	base := r.getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := r.home()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppDir, "credentials"), nil
}

type appDataResolver struct {
	getenv func(string) string
}

func (r appDataResolver) Dir() (string, error) {
	base := r.getenv("APPDATA")
	if base == "" {
		return "", fmt.Errorf("%%APPDATA%% is not set")
	}
	return filepath.Join(base, AppDir, "credentials"), nil
}

type darwinResolver struct {
	home func() (string, error)
}

func (r darwinResolver) Dir() (string, error) {
	home, err := r.home()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Application Support", AppDir, "credentials"), nil
}
