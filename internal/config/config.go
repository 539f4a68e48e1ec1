package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// DefaultConfigRelPath is where a project keeps its plugin manager settings
var DefaultConfigRelPath = filepath.Join(".mini-wiki", "plugins.yaml")

// Config holds plugin manager settings. Values are layered: defaults, then
// the YAML config file, then MW_* environment variables, then flags.
type Config struct {
	// PluginsDir is relative to the project root unless absolute
	PluginsDir string `yaml:"plugins_dir"`
	LogLevel   string `yaml:"log_level"`
	Debug      bool   `yaml:"debug"`

	UserAgent        string        `yaml:"user_agent"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	GitHubAPIURL     string        `yaml:"github_api_url"`
	GitHubArchiveURL string        `yaml:"github_archive_url"`
	GitHubToken      string        `yaml:"-"`

	// ResolveDefaultBranch looks up a hosted repository's default branch
	// instead of assuming main
	ResolveDefaultBranch bool `yaml:"resolve_default_branch"`

	// PreserveEnabledOnReinstall keeps a disabled plugin disabled across
	// update and reinstall. Off by default: reinstall re-enables.
	PreserveEnabledOnReinstall bool `yaml:"preserve_enabled_on_reinstall"`

	// Path of the file the config was read from, empty when none was found
	SourcePath string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		PluginsDir:           plugindomain.PluginsDirName,
		LogLevel:             "info",
		UserAgent:            "mini-wiki-plugin-manager/1.0",
		GitHubAPIURL:         "https://api.github.com",
		GitHubArchiveURL:     "https://github.com",
		ResolveDefaultBranch: true,
	}
}

// Load builds the configuration for a project. configPath overrides the
// MW_CONFIG_PATH variable and the project default location; a missing
// default file is not an error, a missing explicit file is.
func Load(projectRoot, configPath string) (*Config, error) {
	cfg := Default()

	explicit := true
	if configPath == "" {
		configPath = os.Getenv("MW_CONFIG_PATH")
	}
	if configPath == "" {
		explicit = false
		configPath = filepath.Join(projectRoot, DefaultConfigRelPath)
	}

	if err := cfg.loadFile(configPath); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.SourcePath = path
	return nil
}

// applyEnv overlays MW_* environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MW_PLUGINS_DIR"); ok && v != "" {
		c.PluginsDir = v
	}
	if v, ok := lookup("MW_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("MW_USER_AGENT"); ok && v != "" {
		c.UserAgent = v
	}
	if v, ok := lookup("MW_GITHUB_API_URL"); ok && v != "" {
		c.GitHubAPIURL = v
	}
	if v, ok := lookup("MW_GITHUB_ARCHIVE_URL"); ok && v != "" {
		c.GitHubArchiveURL = v
	}
	if v, ok := lookup("MW_GITHUB_TOKEN"); ok {
		c.GitHubToken = v
	} else if v, ok := lookup("GITHUB_TOKEN"); ok {
		c.GitHubToken = v
	}

	boolVars := map[string]*bool{
		"MW_DEBUG":                  &c.Debug,
		"MW_RESOLVE_DEFAULT_BRANCH": &c.ResolveDefaultBranch,
		"MW_PRESERVE_ENABLED":       &c.PreserveEnabledOnReinstall,
	}
	for name, target := range boolVars {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", name, v, err)
		}
		*target = b
	}

	if v, ok := lookup("MW_HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MW_HTTP_TIMEOUT value %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// ResolvePluginsDir returns the absolute managed directory for a project
func (c *Config) ResolvePluginsDir(projectRoot string) string {
	dir := c.PluginsDir
	if dir == "" {
		dir = plugindomain.PluginsDirName
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// EffectiveLogLevel resolves the level, with Debug taking precedence
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// Overrides are command-line flag values layered over file and environment
type Overrides struct {
	// ConfigPath replaces the default config file location
	ConfigPath string
	Debug      bool
	LogLevel   string
}

// ApplyOverrides applies flag values that were set
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Debug {
		c.Debug = true
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}
