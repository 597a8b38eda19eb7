package cmd

import (
	"github.com/spf13/cobra"

	"bento/internal/app"
)

func newConfigCmd() *cobra.Command {
	var opts app.ConfigureOptions

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Choose ports and write the Hadoop/HBase site files",
		Long: `Checks that the ports chosen by a previous run (or the conventional Hadoop
and HBase ports) are still free and writes the site files for them. When a
port is taken you are asked to pick a replacement.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication(cmd, newConfig(""))
			if err != nil {
				return err
			}
			return a.Configure(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.AlwaysPrompt, "prompt", false, "Ask for every port even when all are free")
	cmd.Flags().BoolVar(&opts.UseHadoopDefaults, "use-hadoop-defaults", false, "Start from the conventional Hadoop/HBase ports instead of the configured ones")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "Discard previous port choices and rewrite the site files")
	return cmd
}
