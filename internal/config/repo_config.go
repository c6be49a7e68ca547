package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	ErrRepoConfigNotFound = errors.New("repo config file not found")
	ErrRepoConfigParsing  = errors.New("repo config parsing failed")
)

// RepoOverride represents the structure of a repository's .codewarden.yml,
// letting a single repository opt out of auto-scan, narrow its cache-type
// set, or tune its scan interval without touching the global config.
type RepoOverride struct {
	AutoScanEnabled     *bool    `yaml:"auto_scan_enabled"`
	ScanIntervalMinutes int      `yaml:"scan_interval_minutes"`
	CacheTypes          []string `yaml:"cache_types"`
	ExcludeDirs         []string `yaml:"exclude_dirs"`
	ExcludeExts         []string `yaml:"exclude_exts"`
}

// DefaultRepoOverride returns an override with no opinions: every field is
// either empty or nil so the caller falls back to global configuration.
func DefaultRepoOverride() *RepoOverride {
	return &RepoOverride{
		CacheTypes:  []string{},
		ExcludeDirs: []string{},
		ExcludeExts: []string{},
	}
}

// LoadRepoOverride loads and parses the .codewarden.yml file from a
// repository path. If the file does not exist, it returns the default
// override alongside ErrRepoConfigNotFound so callers can distinguish
// "no file" (expected, common) from a parse failure.
func LoadRepoOverride(repoPath string) (*RepoOverride, error) {
	configPath := filepath.Join(repoPath, ".codewarden.yml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRepoOverride(), ErrRepoConfigNotFound
		}
		return nil, fmt.Errorf("failed to read .codewarden.yml: %w", err)
	}

	override := DefaultRepoOverride()
	if err := yaml.Unmarshal(data, override); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoConfigParsing, err)
	}
	return override, nil
}
