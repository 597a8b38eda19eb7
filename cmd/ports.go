package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-ports",
		Short: "Report configured ports that are in use",
		Long: `Lists the configured ports that another process is currently listening on.
Exits with status 1 when any are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication(cmd, newConfig(""))
			if err != nil {
				return err
			}
			taken, err := a.CheckPorts()
			if err != nil {
				return err
			}
			if taken > 0 {
				return fmt.Errorf("%d configured port(s) in use", taken)
			}
			return nil
		},
	}
}

func newPortsCmd() *cobra.Command {
	var copyReport bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Show the cluster's web UI addresses and service ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication(cmd, newConfig(""))
			if err != nil {
				return err
			}
			return a.ReportPorts(copyReport)
		},
	}

	cmd.Flags().BoolVar(&copyReport, "copy", false, "Also copy the report to the clipboard")
	return cmd
}
