package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sol-strategies/dotbot-if/internal/runner"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the plugins a run would load, in dispatch order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Options.Merge(optionsFromFlags(cmd)); err != nil {
			return err
		}
		if err := cfg.Options.Validate(); err != nil {
			return err
		}

		plugins, err := runner.New(cfg).Plugins(cfg.Options.Directive(nil))
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.AppendHeader(table.Row{"#", "Directive", "Source"})
		for i, p := range plugins {
			t.AppendRow(table.Row{i + 1, p.Name, p.Source})
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	pluginsCmd.Flags().StringArrayP("plugin", "p", nil, "plugin manifest to load (repeatable)")
	pluginsCmd.Flags().StringArray("plugin-dir", nil, "directory of plugin manifests to load (repeatable)")
	pluginsCmd.Flags().Bool("disable-built-in-plugins", false, "do not load the clean, create, link and shell plugins")
	rootCmd.AddCommand(pluginsCmd)
}
