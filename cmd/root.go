package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bento/internal/app"
	"bento/internal/color"
)

const (
	stateDirKey = "state-dir"
	stateDirEnv = "BENTO_STATE_DIR"
)

// debug enables debug logging for every command.
var debug bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bento",
	Short: "Run a local Hadoop/HBase cluster for development",
	Long: `bento manages a single-node Hadoop, HBase and ZooKeeper cluster on your
machine. It picks free ports for every engine, writes the Hadoop and HBase
site files, starts the engines in dependency order and shuts them down
cleanly again.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. occupied ports, an instance already running)
	SilenceUsage: true,
	// Errors are explained by Execute instead.
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		color.Initialize(lipgloss.HasDarkBackground())
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "bento version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.ErrorStyle.Render(app.Explain(err)))
		os.Exit(1)
	}
}

// stateDir returns the state directory from --state-dir or BENTO_STATE_DIR.
func stateDir() string {
	return viper.GetString(stateDirKey)
}

func newConfig(configPath string) *app.Config {
	return app.NewConfig(stateDir(), configPath, debug)
}

// newApplication bootstraps the application with operator I/O bound to cmd.
func newApplication(cmd *cobra.Command, cfg *app.Config) (*app.Application, error) {
	return app.NewApplication(cfg, app.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()))
}

func init() {
	rootCmd.PersistentFlags().String(stateDirKey, "", "Directory holding the cluster's configuration, data and lock file (env "+stateDirEnv+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	_ = viper.BindPFlag(stateDirKey, rootCmd.PersistentFlags().Lookup(stateDirKey))
	_ = viper.BindEnv(stateDirKey, stateDirEnv)

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCheckPortsCmd())
	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
