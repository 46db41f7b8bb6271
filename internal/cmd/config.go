package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/testrail"
)

// connection holds the flags overriding configured publish settings.
type connection struct {
	domain     string
	username   string
	projectID  int
	suiteIDs   []int
	updateRun  int
	updatePlan int
	runName    string
}

// flags returns a flag set shared by the commands that publish.
func (c *connection) flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("connection", pflag.ContinueOnError)
	fs.StringVar(&c.domain, "domain", "", "TestRail host, overrides testrail.domain")
	fs.StringVar(&c.username, "username", "", "TestRail user, overrides testrail.username")
	fs.IntVar(&c.projectID, "project-id", 0, "project id, overrides testrail.project_id")
	fs.IntSliceVar(&c.suiteIDs, "suite-id", nil, "suite id; more than one publishes into a plan")
	fs.IntVar(&c.updateRun, "update-run", 0, "add results to an existing run")
	fs.IntVar(&c.updatePlan, "update-plan", 0, "add results to an existing plan")
	fs.StringVar(&c.runName, "run-name", "", "name of the created run or plan")
	return fs
}

// apply copies the flags that were set on fs onto cfg.
func (c *connection) apply(fs *pflag.FlagSet, cfg *config.TestRailConfig) {
	if fs.Changed("domain") {
		cfg.Domain = c.domain
	}
	if fs.Changed("username") {
		cfg.Username = c.username
	}
	if fs.Changed("project-id") {
		cfg.ProjectID = c.projectID
	}
	if fs.Changed("suite-id") {
		if len(c.suiteIDs) == 1 {
			cfg.SuiteID = config.SingleSuite(c.suiteIDs[0])
		} else {
			cfg.SuiteID = config.MultiSuite(c.suiteIDs...)
		}
	}
	if fs.Changed("update-run") {
		cfg.UpdateRun = c.updateRun
	}
	if fs.Changed("update-plan") {
		cfg.UpdatePlan = c.updatePlan
	}
	if fs.Changed("run-name") {
		cfg.RunName = c.runName
	}
}

// loadConfig reads the --config file or the one found from the working
// directory, then fills connection settings from the environment.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg, err = config.LoadFromDir(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// newClient builds the TestRail client; tests point it at a mock server.
var newClient = func(cfg *config.TestRailConfig) (*testrail.Client, error) {
	return testrail.NewClient(cfg, testrail.WithLogger(log))
}
