package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/events"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/gotest"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/output"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/reporter"
)

var (
	publishDryRun bool
	publishConn   connection
)

var publishCmd = &cobra.Command{
	Use:   "publish [file|-]",
	Short: "Publish a go test -json stream to TestRail",
	Long: `Read "go test -json" output from a file or stdin, match tests to TestRail
cases and publish the results.

A single suite_id creates a run (or extends --update-run); a list of suite
ids creates a plan with one entry per suite (or extends --update-plan).

Examples:
  go test -json ./... | testrail-reporter publish
  testrail-reporter publish results.json --run-name "Nightly"
  testrail-reporter publish results.json --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "show the results without calling TestRail")
	publishCmd.Flags().AddFlagSet(publishConn.flags())
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	publishConn.apply(cmd.Flags(), &cfg.TestRail)

	in, closeIn, err := openStream(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	rep, err := report(cmd, &cfg.TestRail, in, nil, publishDryRun)
	if err != nil {
		return err
	}
	printResults(cmd, rep, publishDryRun)
	return nil
}

// openStream opens the file named by args[0], or stdin for none or "-".
func openStream(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open test output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// report feeds a go test -json stream through a reporter. Unless dryRun is
// set, the end of the stream publishes the results.
func report(cmd *cobra.Command, cfg *config.TestRailConfig, in io.Reader, echo io.Writer, dryRun bool) (*reporter.Reporter, error) {
	var api reporter.API
	if !dryRun {
		client, err := newClient(cfg)
		if err != nil {
			return nil, err
		}
		api = client
	}

	rep, err := reporter.New(cfg, api, reporter.WithLogger(log))
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	if dryRun {
		rep.Collect(bus)
	} else {
		rep.Attach(cmd.Context(), bus)
	}

	opts := []gotest.Option{gotest.WithLogger(log)}
	if echo != nil {
		opts = append(opts, gotest.WithEcho(echo))
	}
	src := gotest.NewSource(bus, gotest.DefaultCapabilities(cfg.BrowserName), opts...)
	if err := src.Consume(in); err != nil {
		return rep, fmt.Errorf("failed to report test results: %w", err)
	}
	return rep, nil
}

func printResults(cmd *cobra.Command, rep *reporter.Reporter, dryRun bool) {
	width := 80
	cmd.Println(output.Header("TestRail Results", width))
	cmd.Println()

	results := rep.Results()
	if len(results) == 0 {
		cmd.Println("No tests matched a TestRail case.")
	} else {
		table := output.NewTable("Case", "Runner", "Status", "Comment")
		for _, r := range results {
			table.AddRow(
				fmt.Sprintf("C%d", r.CaseID),
				r.Runner.BrowserName,
				output.StatusIcon(r.StatusID.String())+" "+output.StatusLabel(r.StatusID.String()),
				output.Truncate(output.FirstLine(r.Comment), 50),
			)
		}
		cmd.Print(table.Render())
	}

	c := rep.Counts()
	cmd.Println()
	cmd.Printf("Steps: %s\n", output.Summary(c.Passed, c.Failed, c.Pending))

	if dryRun {
		cmd.Printf("%s\n", output.Color("Dry run - nothing sent to TestRail", output.Yellow))
		return
	}

	summary := rep.Summary()
	if summary == nil || summary.Mode == reporter.ModeNone {
		return
	}
	runs := make([]string, 0, len(summary.RunIDs))
	for _, id := range summary.RunIDs {
		runs = append(runs, fmt.Sprintf("R%d", id))
	}
	cmd.Printf("%s Published %d result(s) to %s (%s)\n",
		output.Color("✓", output.Green), summary.Pushed, strings.Join(runs, ", "), summary.URL)
}
