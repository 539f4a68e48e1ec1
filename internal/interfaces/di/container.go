package di

import (
	"fmt"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"

	"miniwiki.dev/cli/internal/application/services"
	"miniwiki.dev/cli/internal/config"
	httpinfra "miniwiki.dev/cli/internal/infrastructure/http"
	plugininfra "miniwiki.dev/cli/internal/infrastructure/plugin"
	"miniwiki.dev/cli/internal/infrastructure/registry"
	"miniwiki.dev/cli/internal/interfaces/cli"
	"miniwiki.dev/cli/internal/logging"
)

// Container holds all application dependencies. Plugin managers are built
// per command because configuration lives inside the target project.
type Container struct {
	// CLI
	CLIContainer *cli.CLIContainer

	// Logger
	Logger *logrus.Logger
}

// NewContainer creates and configures the dependency injection container
func NewContainer() (*Container, error) {
	container := &Container{
		Logger: logging.New(os.Stderr, os.Getenv("MW_LOG_LEVEL")),
	}

	container.CLIContainer = &cli.CLIContainer{
		Logger: container.Logger,
		NewPluginService: func(projectRoot string, overrides config.Overrides) (cli.PluginService, error) {
			return container.NewPluginManager(projectRoot, overrides)
		},
	}
	return container, nil
}

// NewPluginManager loads the project's configuration and wires a manager
// over its plugins directory
func (c *Container) NewPluginManager(projectRoot string, overrides config.Overrides) (*services.PluginManager, error) {
	cfg, err := config.Load(projectRoot, overrides.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyOverrides(overrides)
	logging.SetLevel(c.Logger, cfg.EffectiveLogLevel())

	if cfg.SourcePath != "" {
		c.Logger.WithField("path", cfg.SourcePath).Debug("Loaded configuration")
	}
	return BuildPluginManager(cfg, projectRoot, c.Logger), nil
}

// BuildPluginManager wires the plugin manager components for cfg
func BuildPluginManager(cfg *config.Config, projectRoot string, log *logrus.Logger) *services.PluginManager {
	pluginsDir := cfg.ResolvePluginsDir(projectRoot)

	client := httpinfra.NewClient(httpinfra.ClientConfig{
		UserAgent:  cfg.UserAgent,
		APIBaseURL: cfg.GitHubAPIURL,
		Token:      cfg.GitHubToken,
		TokenHosts: hostsOf(cfg.GitHubAPIURL, cfg.GitHubArchiveURL),
		Timeout:    cfg.HTTPTimeout,
	}, log)

	fetcher := plugininfra.NewSourceFetcher(plugininfra.FetcherConfig{
		WorkDir:              pluginsDir,
		ArchiveBaseURL:       cfg.GitHubArchiveURL,
		ResolveDefaultBranch: cfg.ResolveDefaultBranch,
	}, client, log)

	return services.NewPluginManager(
		fetcher,
		plugininfra.NewManifestResolver(log),
		plugininfra.NewFileSystemInstaller(pluginsDir, log),
		registry.NewYAMLStoreForDir(pluginsDir, log),
		services.ManagerConfig{PreserveEnabledOnReinstall: cfg.PreserveEnabledOnReinstall},
		log,
	)
}

// hostsOf extracts host names from URLs, skipping unparsable ones
func hostsOf(rawURLs ...string) []string {
	var hosts []string
	for _, raw := range rawURLs {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}
