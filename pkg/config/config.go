// Package config handles loading and saving drawer configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/drawer/config.yaml
//   - Cache:   ~/.cache/drawer/ (app list snapshot, metadata, file index)
//   - State:   ~/.local/state/drawer/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const appName = "drawer"

// Environment overrides applied by Load.
const (
	EnvCacheDir = "DRAWER_CACHE_DIR"
	EnvRegistry = "DRAWER_REGISTRY"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// FocusConfig restricts the drawer to an allow-list while active.
type FocusConfig struct {
	Active bool     `yaml:"active"`
	Allow  []string `yaml:"allow,omitempty"`
}

// Preferences are the user's filter choices.
type Preferences struct {
	Hidden          []string            `yaml:"hidden,omitempty"`
	Favorites       []string            `yaml:"favorites,omitempty"`
	ShowAll         bool                `yaml:"show_all"`
	Focus           FocusConfig         `yaml:"focus,omitempty"`
	Workspaces      map[string][]string `yaml:"workspaces,omitempty"`
	ActiveWorkspace string              `yaml:"active_workspace,omitempty"`
}

// CacheConfig controls where and how the app list is persisted.
type CacheConfig struct {
	Dir       string        `yaml:"dir,omitempty"`
	Backend   string        `yaml:"backend,omitempty"` // file, sqlite
	Staleness time.Duration `yaml:"staleness,omitempty"`
}

// SearchConfig holds search engine settings.
type SearchConfig struct {
	Debounce    time.Duration `yaml:"debounce,omitempty"`
	DefaultMode string        `yaml:"default_mode,omitempty"`
	FileRoots   []string      `yaml:"file_roots,omitempty"`
	Locale      string        `yaml:"locale,omitempty"`
}

// RegistryConfig locates the package registry.
type RegistryConfig struct {
	Kind string `yaml:"kind,omitempty"` // sqlite, jsonl; empty means detect
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Preferences Preferences    `yaml:"preferences"`
	Cache       CacheConfig    `yaml:"cache,omitempty"`
	Search      SearchConfig   `yaml:"search,omitempty"`
	Registry    RegistryConfig `yaml:"registry,omitempty"`
	Log         LogConfig      `yaml:"log,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Preferences: Preferences{
			ShowAll:    true,
			Workspaces: make(map[string][]string),
		},
		Cache: CacheConfig{
			Backend:   BackendFile,
			Staleness: 5 * time.Minute,
		},
		Search: SearchConfig{
			Debounce:    10 * time.Millisecond,
			DefaultMode: model.SearchAll.String(),
		},
		Log: LogConfig{Level: "info"},
	}
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// CacheDir returns the XDG cache directory.
func CacheDir() string { return xdgDir("XDG_CACHE_HOME", ".cache") }

// StateDir returns the XDG state directory.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFrom reads config from a specific path without applying environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Preferences.Workspaces == nil {
		cfg.Preferences.Workspaces = make(map[string][]string)
	}

	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.Registry.Path = expandHome(cfg.Registry.Path)
	for i := range cfg.Search.FileRoots {
		cfg.Search.FileRoots[i] = expandHome(cfg.Search.FileRoots[i])
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides the cache directory and registry path from the
// environment.
func (c *Config) ApplyEnv() {
	if dir := strings.TrimSpace(os.Getenv(EnvCacheDir)); dir != "" {
		c.Cache.Dir = expandHome(dir)
	}
	if reg := strings.TrimSpace(os.Getenv(EnvRegistry)); reg != "" {
		c.Registry.Path = expandHome(reg)
	}
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case "", BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	switch c.Registry.Kind {
	case "", "sqlite", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("registry.kind: unknown kind %q", c.Registry.Kind))
	}
	if c.Cache.Staleness < 0 {
		errs = append(errs, errors.New("cache.staleness: must not be negative"))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, errors.New("search.debounce: must not be negative"))
	}
	if _, err := model.ParseSearchMode(c.Search.DefaultMode); err != nil {
		errs = append(errs, fmt.Errorf("search.default_mode: %w", err))
	}
	if c.Search.Locale != "" {
		if _, err := language.Parse(c.Search.Locale); err != nil {
			errs = append(errs, fmt.Errorf("search.locale: %w", err))
		}
	}
	if ws := c.Preferences.ActiveWorkspace; ws != "" {
		if _, ok := c.Preferences.Workspaces[ws]; !ok {
			errs = append(errs, fmt.Errorf("preferences.active_workspace: no workspace named %q", ws))
		}
	}
	return errors.Join(errs...)
}

// ResolvedCacheDir returns the configured cache directory or the XDG one.
func (c Config) ResolvedCacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return CacheDir()
}

// SearchMode returns the parsed default search mode.
func (c Config) SearchMode() model.SearchMode {
	m, err := model.ParseSearchMode(c.Search.DefaultMode)
	if err != nil {
		return model.SearchAll
	}
	return m
}

// LocaleTag returns the sort locale; language.Und when unset or invalid.
func (c Config) LocaleTag() language.Tag {
	if c.Search.Locale == "" {
		return language.Und
	}
	tag, err := language.Parse(c.Search.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// FilterOptions converts preferences into filter options. selfPackage and
// selfSettings identify the launcher's own package and its settings
// activity.
func (c Config) FilterOptions(selfPackage, selfSettings string) filter.Options {
	p := c.Preferences
	opts := filter.Options{
		SelfPackage:          selfPackage,
		SelfSettingsActivity: selfSettings,
		Hidden:               filter.Set(p.Hidden...),
		FocusActive:          p.Focus.Active,
		FocusAllow:           filter.Set(p.Focus.Allow...),
		ShowAll:              p.ShowAll,
		Favorites:            filter.Set(p.Favorites...),
	}
	if apps, ok := p.Workspaces[p.ActiveWorkspace]; ok && p.ActiveWorkspace != "" {
		opts.WorkspaceActive = true
		opts.WorkspaceApps = filter.Set(apps...)
	}
	return opts
}

// SetHidden hides or unhides a package.
func (c *Config) SetHidden(pkg string, hidden bool) {
	c.Preferences.Hidden = toggle(c.Preferences.Hidden, pkg, hidden)
}

// SetFavorite adds or removes a favorite package.
func (c *Config) SetFavorite(pkg string, favorite bool) {
	c.Preferences.Favorites = toggle(c.Preferences.Favorites, pkg, favorite)
}

func toggle(list []string, id string, on bool) []string {
	i := slices.Index(list, id)
	switch {
	case on && i < 0:
		return append(list, id)
	case !on && i >= 0:
		return slices.Delete(list, i, i+1)
	}
	return list
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
