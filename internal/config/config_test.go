package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv blanks every variable Load reads so the host environment
// cannot leak into a test
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MW_CONFIG_PATH", "MW_PLUGINS_DIR", "MW_LOG_LEVEL", "MW_USER_AGENT",
		"MW_GITHUB_API_URL", "MW_GITHUB_ARCHIVE_URL", "MW_GITHUB_TOKEN", "GITHUB_TOKEN",
		"MW_DEBUG", "MW_RESOLVE_DEFAULT_BRANCH", "MW_PRESERVE_ENABLED", "MW_HTTP_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)
	project := t.TempDir()

	cfg, err := Load(project, "")
	require.NoError(t, err)

	assert.Equal(t, "plugins", cfg.PluginsDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://api.github.com", cfg.GitHubAPIURL)
	assert.Equal(t, "https://github.com", cfg.GitHubArchiveURL)
	assert.True(t, cfg.ResolveDefaultBranch)
	assert.False(t, cfg.PreserveEnabledOnReinstall)
	assert.Empty(t, cfg.SourcePath)
	assert.Empty(t, cfg.GitHubToken)
}

func TestLoad_ProjectConfigFile(t *testing.T) {
	isolateEnv(t)
	project := t.TempDir()
	path := filepath.Join(project, DefaultConfigRelPath)
	writeConfig(t, path, `
plugins_dir: extensions
log_level: warn
http_timeout: 45s
resolve_default_branch: false
preserve_enabled_on_reinstall: true
`)

	cfg, err := Load(project, "")
	require.NoError(t, err)

	assert.Equal(t, "extensions", cfg.PluginsDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.ResolveDefaultBranch)
	assert.True(t, cfg.PreserveEnabledOnReinstall)
	assert.Equal(t, path, cfg.SourcePath)
	assert.Equal(t, "https://github.com", cfg.GitHubArchiveURL, "unset keys keep their defaults")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	isolateEnv(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, DefaultConfigRelPath), "plugins_dir: from-file\nlog_level: warn\n")

	t.Setenv("MW_PLUGINS_DIR", "from-env")
	t.Setenv("MW_DEBUG", "true")
	t.Setenv("MW_HTTP_TIMEOUT", "2m")
	t.Setenv("MW_PRESERVE_ENABLED", "1")
	t.Setenv("GITHUB_TOKEN", "fallback-token")

	cfg, err := Load(project, "")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.PluginsDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 2*time.Minute, cfg.HTTPTimeout)
	assert.True(t, cfg.PreserveEnabledOnReinstall)
	assert.Empty(t, cfg.GitHubToken, "MW_GITHUB_TOKEN is set (empty) and wins over GITHUB_TOKEN")
}

func TestLoad_GitHubTokenFallback(t *testing.T) {
	isolateEnv(t)
	require.NoError(t, os.Unsetenv("MW_GITHUB_TOKEN"))
	t.Setenv("GITHUB_TOKEN", "fallback-token")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "fallback-token", cfg.GitHubToken)
}

func TestLoad_TokenNeverReadFromFile(t *testing.T) {
	isolateEnv(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, DefaultConfigRelPath), "github_token: leaked\n")

	cfg, err := Load(project, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.GitHubToken)
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeConfig(t, path, "log_level: error\n")

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestLoad_ConfigPathFromEnvironment(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "env.yaml")
	writeConfig(t, path, "plugins_dir: via-env-path\n")
	t.Setenv("MW_CONFIG_PATH", path)

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "via-env-path", cfg.PluginsDir)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, project string) string
	}{
		{
			name: "MissingExplicitFile",
			setup: func(t *testing.T, project string) string {
				return filepath.Join(project, "does-not-exist.yaml")
			},
		},
		{
			name: "MalformedFile",
			setup: func(t *testing.T, project string) string {
				writeConfig(t, filepath.Join(project, DefaultConfigRelPath), "plugins_dir: [unterminated\n")
				return ""
			},
		},
		{
			name: "InvalidBool",
			setup: func(t *testing.T, project string) string {
				t.Setenv("MW_DEBUG", "sometimes")
				return ""
			},
		},
		{
			name: "InvalidTimeout",
			setup: func(t *testing.T, project string) string {
				t.Setenv("MW_HTTP_TIMEOUT", "soon")
				return ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			project := t.TempDir()
			configPath := tt.setup(t, project)

			cfg, err := Load(project, configPath)

			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestResolvePluginsDir(t *testing.T) {
	project := t.TempDir()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	absolute := filepath.Join(t.TempDir(), "shared-plugins")

	tests := []struct {
		name       string
		pluginsDir string
		expected   string
	}{
		{"Default", "", filepath.Join(project, "plugins")},
		{"Relative", "ext/plugins", filepath.Join(project, "ext", "plugins")},
		{"Absolute", absolute, absolute},
		{"Home", "~/mw-plugins", filepath.Join(home, "mw-plugins")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{PluginsDir: tt.pluginsDir}
			assert.Equal(t, tt.expected, cfg.ResolvePluginsDir(project))
		})
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	assert.Equal(t, "info", (&Config{}).EffectiveLogLevel())
	assert.Equal(t, "warn", (&Config{LogLevel: "warn"}).EffectiveLogLevel())
	assert.Equal(t, "debug", (&Config{LogLevel: "warn", Debug: true}).EffectiveLogLevel())
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{})
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)

	cfg.ApplyOverrides(Overrides{LogLevel: "error"})
	assert.Equal(t, "error", cfg.LogLevel)

	cfg.ApplyOverrides(Overrides{Debug: true})
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.EffectiveLogLevel())
}
