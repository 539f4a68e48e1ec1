package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"miniwiki.dev/cli/internal/config"
	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// errCommandFailed marks a failure whose message was already printed
var errCommandFailed = errors.New("command failed")

// PluginService is the plugin manager as seen by the command layer
type PluginService interface {
	Install(ctx context.Context, source string) plugindomain.Result
	Update(ctx context.Context, name string) plugindomain.Result
	UpdateAll(ctx context.Context) []plugindomain.Result
	SetEnabled(ctx context.Context, name string, enabled bool) plugindomain.Result
	Uninstall(ctx context.Context, name string) plugindomain.Result
	List(ctx context.Context) ([]plugindomain.InstalledPlugin, error)
	HookPlan(ctx context.Context, hook string) ([]plugindomain.InstalledPlugin, error)
}

// CLIContainer holds all the dependencies for CLI commands
type CLIContainer struct {
	Logger *logrus.Logger

	// NewPluginService builds a manager for the project rooted at projectRoot
	NewPluginService func(projectRoot string, overrides config.Overrides) (PluginService, error)
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "mw",
		Short: "mini-wiki - documentation generation toolkit",
		Long: `mini-wiki generates and maintains project documentation.

Its behavior can be extended with plugins that participate in named hook
points of the generation pipeline. Use 'mw plugins' to manage them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set custom version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default is <project>/.mini-wiki/plugins.yaml)")

	// Add subcommands
	rootCmd.AddCommand(newPluginsCommand(container))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mw version %s\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
				Version, BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// overridesFromFlags collects the persistent flags that were set
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	o.Debug, _ = cmd.Flags().GetBool("debug")
	if cmd.Flags().Changed("log-level") {
		o.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	o.ConfigPath, _ = cmd.Flags().GetString("config")
	return o
}

// Run executes the root command with args and returns the process exit code
func Run(ctx context.Context, container *CLIContainer, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand(container)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context, container *CLIContainer) {
	os.Exit(Run(ctx, container, os.Args[1:], os.Stdout, os.Stderr))
}
