package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the TestRail configuration",
	Long: `Load the configuration, check it against the configuration schema and
make sure every option needed to publish is set, including values taken
from TESTRAIL_DOMAIN, TESTRAIL_USERNAME and the password variable.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	width := 80
	cmd.Println(output.Header("Configuration Validation", width))
	cmd.Println()

	pass := output.Color("[PASS]", output.Green)
	fail := output.Color("[FAIL]", output.Red)

	path := cfgFile
	if path == "" {
		cwd, err := os.Getwd()
		if err == nil {
			path, err = config.FindConfig(cwd)
		}
		if err != nil {
			cmd.Printf("  %s Config file: %v\n", fail, err)
			return invalid(cmd)
		}
	}
	cmd.Printf("  %s Config file: %s\n", pass, path)

	cfg, err := config.Load(path)
	if err != nil {
		cmd.Printf("  %s Schema: %v\n", fail, err)
		return invalid(cmd)
	}
	cmd.Printf("  %s Schema\n", pass)

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			cmd.Printf("  %s Required options: %s\n", fail, cfgErr.Field)
		} else {
			cmd.Printf("  %s Required options: %v\n", fail, err)
		}
		return invalid(cmd)
	}
	cmd.Printf("  %s Required options\n", pass)

	tr := cfg.TestRail
	var mode string
	switch {
	case tr.SuiteID.IsMulti() && tr.UpdatePlan != 0:
		mode = fmt.Sprintf("update plan %d", tr.UpdatePlan)
	case tr.SuiteID.IsMulti():
		mode = "new plan"
	case tr.UpdateRun != 0:
		mode = fmt.Sprintf("update run %d", tr.UpdateRun)
	default:
		mode = "new run"
	}

	cmd.Println()
	cmd.Printf("Publishing: %s on %s, project %d\n", mode, tr.Domain, tr.ProjectID)
	cmd.Printf("Status: %s\n", output.Color("VALID", output.Green))
	return nil
}

func invalid(cmd *cobra.Command) error {
	cmd.Println()
	cmd.Printf("Status: %s\n", output.Color("INVALID", output.Red))
	return NewExitError(1, "configuration validation failed")
}
