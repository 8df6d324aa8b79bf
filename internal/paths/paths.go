package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("RUNSHEET_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "runsheet"),
		DataDir:   getDir("RUNSHEET_DATA_HOME", "XDG_DATA_HOME", ".local/share", "runsheet"),
		CacheDir:  getDir("RUNSHEET_CACHE_HOME", "XDG_CACHE_HOME", ".cache", "runsheet"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase, appName string) string {
	// 1. Check app-specific env
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	// 2. Check XDG env
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	// 3. Use default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetFileCachePath returns the path to the remote file-listing cache database
func GetFileCachePath() string {
	if path := os.Getenv("RUNSHEET_FILE_CACHE"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().CacheDir, "osdr_files.db")
}

// GetProfilesPath returns the directory scanned for user profile YAML files
func GetProfilesPath() string {
	return filepath.Join(GetPaths().ConfigDir, "profiles")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	paths := GetPaths()
	dirs := []string{
		paths.ConfigDir,
		filepath.Join(paths.ConfigDir, "profiles"),
		paths.DataDir,
		paths.CacheDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
