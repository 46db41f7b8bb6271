// Package cmd provides the CLI commands of the TestRail reporter.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/output"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"
	// Commit is set at build time via ldflags.
	Commit = "none"
	// Date is set at build time via ldflags.
	Date = "unknown"
)

var (
	cfgFile string
	noColor bool
	verbose bool

	log = logrus.New()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "testrail-reporter",
	Short: "Publish Go test results to TestRail",
	Long: `testrail-reporter reads "go test -json" output, matches tests to TestRail
cases through C<number> ids in test names or testrail.Case tags, and
publishes the results into a new or existing run or plan.

Configuration is read from .testrail/config.yaml, .testrail.yaml or
testrail.yaml in the working directory or one of its parents.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .testrail/config.yaml or testrail.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every TestRail request")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup configures colors and the logger shared by all commands.
func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		output.DisableColor()
	}

	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    noColor,
	})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return nil
}
