package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// newPluginsCommand creates the plugins command group
func newPluginsCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage mini-wiki plugins",
		Long: `Manage the plugins installed in a project's plugins directory.

A plugin can be installed from a local directory, a local archive
(.zip, .skill, .tar.gz), an http(s) URL pointing at an archive, or an
owner/name[@branch] hosted repository reference. Every command takes an
optional project path that defaults to the current directory.`,
		Example: `  # List installed plugins in load order
  mw plugins list

  # Install from a hosted repository
  mw plugins install acme/mw-diagrams

  # Install from a local directory into another project
  mw plugins install ./my-plugin ~/work/docs

  # Update everything that was not installed from a local path
  mw plugins update

  # Disable a plugin without removing it
  mw plugins disable mw-diagrams`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
	}

	cmd.AddCommand(newPluginsListCommand(container))
	cmd.AddCommand(newPluginsInstallCommand(container))
	cmd.AddCommand(newPluginsUpdateCommand(container))
	cmd.AddCommand(newPluginsEnableCommand(container, true))
	cmd.AddCommand(newPluginsEnableCommand(container, false))
	cmd.AddCommand(newPluginsUninstallCommand(container))
	cmd.AddCommand(newPluginsHooksCommand(container))

	return cmd
}

// newPluginsListCommand creates the list command
func newPluginsListCommand(container *CLIContainer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List installed plugins",
		Long: `List installed plugins in load order (ascending priority).

Plugin directories without a PLUGIN.md get one generated from their
SKILL.md or README.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginsList(cmd, container, args, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json, yaml)")
	return cmd
}

// newPluginsInstallCommand creates the install command
func newPluginsInstallCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "install <source> [path]",
		Short: "Install a plugin",
		Long: `Install a plugin from a local directory, archive, URL or owner/name[@branch]
reference. Installing a plugin that is already installed replaces it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := pluginService(cmd, container, args[1:])
			if err != nil {
				return err
			}
			return reportResult(cmd, svc.Install(cmd.Context(), args[0]))
		},
	}
}

// newPluginsUpdateCommand creates the update command
func newPluginsUpdateCommand(container *CLIContainer) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "update [name] [path]",
		Short: "Update plugins",
		Long: `Re-fetch a plugin from the source it was installed from. Without a name,
or with --all, every plugin not installed from a local path is updated.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.MaximumNArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all || len(args) == 0 {
				return runPluginsUpdateAll(cmd, container, args)
			}
			svc, err := pluginService(cmd, container, args[1:])
			if err != nil {
				return err
			}
			return reportResult(cmd, svc.Update(cmd.Context(), args[0]))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Update all plugins; the only argument is the project path")
	return cmd
}

// newPluginsEnableCommand creates the enable or disable command
func newPluginsEnableCommand(container *CLIContainer, enable bool) *cobra.Command {
	use, short := "disable <name> [path]", "Disable a plugin"
	if enable {
		use, short = "enable <name> [path]", "Enable a plugin"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := pluginService(cmd, container, args[1:])
			if err != nil {
				return err
			}
			return reportResult(cmd, svc.SetEnabled(cmd.Context(), args[0], enable))
		},
	}
}

// newPluginsUninstallCommand creates the uninstall command
func newPluginsUninstallCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <name> [path]",
		Aliases: []string{"remove"},
		Short:   "Uninstall a plugin",
		Long:    `Remove a plugin's directory and its registry entry.`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := pluginService(cmd, container, args[1:])
			if err != nil {
				return err
			}
			return reportResult(cmd, svc.Uninstall(cmd.Context(), args[0]))
		},
	}
}

// newPluginsHooksCommand creates the hooks command
func newPluginsHooksCommand(container *CLIContainer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "hooks <hook> [path]",
		Short: "Show the plugins run at a hook point",
		Long: `Show the enabled plugins that participate in a hook point such as
after_analyze or before_generate, in the order they run.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			svc, err := pluginService(cmd, container, args[1:])
			if err != nil {
				return err
			}
			plan, err := svc.HookPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(plan) == 0 && output == outputTable {
				fmt.Fprintf(cmd.OutOrStdout(), "No enabled plugins for hook %s\n", args[0])
				return nil
			}
			return renderPlugins(cmd.OutOrStdout(), plan, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json, yaml)")
	return cmd
}

// runPluginsList handles the plugins list command
func runPluginsList(cmd *cobra.Command, container *CLIContainer, args []string, output string) error {
	if err := validateOutput(output); err != nil {
		return err
	}
	svc, err := pluginService(cmd, container, args)
	if err != nil {
		return err
	}

	installed, err := svc.List(cmd.Context())
	if err != nil {
		// listing never fails the command
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %v\n", err)
	}

	if len(installed) == 0 && output == outputTable {
		fmt.Fprintln(cmd.OutOrStdout(), "No plugins installed.")
		fmt.Fprintln(cmd.OutOrStdout(), "To install a plugin, run: mw plugins install <source>")
		return nil
	}
	return renderPlugins(cmd.OutOrStdout(), installed, output)
}

// runPluginsUpdateAll handles update without a plugin name
func runPluginsUpdateAll(cmd *cobra.Command, container *CLIContainer, args []string) error {
	svc, err := pluginService(cmd, container, args)
	if err != nil {
		return err
	}

	results := svc.UpdateAll(cmd.Context())
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No updatable plugins installed.")
		return nil
	}

	failed := 0
	for _, r := range results {
		printResult(cmd, r)
		if !r.Success {
			failed++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nUpdated %d/%d plugins\n", len(results)-failed, len(results))
	if failed > 0 {
		return errCommandFailed
	}
	return nil
}

// pluginService builds the manager for the project path argument, if any
func pluginService(cmd *cobra.Command, container *CLIContainer, pathArgs []string) (PluginService, error) {
	projectRoot := ""
	if len(pathArgs) > 0 {
		projectRoot = pathArgs[0]
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		projectRoot = wd
	}

	svc, err := container.NewPluginService(projectRoot, overridesFromFlags(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin manager: %w", err)
	}
	return svc, nil
}

// reportResult prints a result and maps failure to a non-zero exit
func reportResult(cmd *cobra.Command, r plugindomain.Result) error {
	printResult(cmd, r)
	if !r.Success {
		return errCommandFailed
	}
	return nil
}

func printResult(cmd *cobra.Command, r plugindomain.Result) {
	if r.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n", r.Message)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "❌ %s\n", r.Message)
}
