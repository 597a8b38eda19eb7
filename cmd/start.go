package cmd

import (
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var (
		acceptPorts   bool
		configPath    string
		statusAddress string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the cluster and run until stopped",
		Long: `Negotiates ports, writes the site files and starts ZooKeeper, HDFS, HBase
and MapReduce in dependency order. The command keeps running until it
receives Ctrl+C or SIGTERM, until ` + "`bento stop`" + ` is run, or until an engine
exits. All engines are stopped in reverse order before it returns.

When a configured port is taken the run is refused unless --accept-ports
is given, in which case the next free port is used instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newConfig(configPath)
			cfg.AcceptPorts = acceptPorts
			cfg.StatusAddress = statusAddress
			a, err := newApplication(cmd, cfg)
			if err != nil {
				return err
			}
			return a.Start(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&acceptPorts, "accept-ports", false, "Use the next free ports when configured ports are taken")
	cmd.Flags().StringVar(&configPath, "config", "", "Additional bento configuration file")
	cmd.Flags().StringVar(&statusAddress, "status-address", "", "Serve cluster status and metrics on this address (e.g. 127.0.0.1:8090)")
	return cmd
}
