package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sol-strategies/dotbot-if/internal/config"
	"github.com/sol-strategies/dotbot-if/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -f FILE [-f FILE...]",
	Short: "Run directive files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")

		if err := cfg.Options.Merge(optionsFromFlags(cmd)); err != nil {
			return err
		}
		if err := cfg.Options.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runner.New(cfg).RunOnce(ctx, files)
	},
}

// optionsFromFlags collects the run options given on the command line.
// Flags a command does not define read as zero values.
func optionsFromFlags(cmd *cobra.Command) config.Options {
	flags := cmd.Flags()
	var o config.Options
	o.BaseDirectory, _ = flags.GetString("base-directory")
	o.Plugins, _ = flags.GetStringArray("plugin")
	o.PluginDirs, _ = flags.GetStringArray("plugin-dir")
	o.DisableBuiltInPlugins, _ = flags.GetBool("disable-built-in-plugins")
	o.Only, _ = flags.GetStringSlice("only")
	o.Skip, _ = flags.GetStringSlice("skip")
	o.ExitOnFailure, _ = flags.GetBool("exit-on-failure")
	o.EnvFiles, _ = flags.GetStringArray("env-file")
	return o
}

func init() {
	runCmd.Flags().StringArrayP("file", "f", nil, "directive file to run (repeatable, processed in order)")
	runCmd.Flags().StringP("base-directory", "d", "", "base directory (default: directory of the first file)")
	runCmd.Flags().StringArrayP("plugin", "p", nil, "plugin manifest to load (repeatable)")
	runCmd.Flags().StringArray("plugin-dir", nil, "directory of plugin manifests to load (repeatable)")
	runCmd.Flags().Bool("disable-built-in-plugins", false, "do not load the clean, create, link and shell plugins")
	runCmd.Flags().StringSlice("only", nil, "only run these directives")
	runCmd.Flags().StringSlice("skip", nil, "skip these directives")
	runCmd.Flags().BoolP("exit-on-failure", "x", false, "stop at the first failed directive")
	runCmd.Flags().StringArray("env-file", nil, "dotenv file passed to child commands (repeatable)")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}
