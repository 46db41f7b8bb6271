// Package testutil provides fixtures shared by the reporter's tests.
package testutil

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
)

// ConfigOption configures a test config.
type ConfigOption func(*config.Config)

// NewTestConfig returns a valid configuration for project 1, suite 2
// on example.testrail.io.
func NewTestConfig(t *testing.T, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.TestRail.Domain = "example.testrail.io"
	cfg.TestRail.Username = "ci@example.com"
	cfg.TestRail.Password = "secret"
	cfg.TestRail.ProjectID = 1
	cfg.TestRail.SuiteID = config.SingleSuite(2)

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithDomain sets the TestRail host.
func WithDomain(domain string) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.Domain = domain
	}
}

// WithSuites switches the config to plan mode over the given suites.
func WithSuites(ids ...int) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.SuiteID = config.MultiSuite(ids...)
	}
}

// WithUpdateRun publishes into an existing run.
func WithUpdateRun(id int) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.UpdateRun = id
	}
}

// WithUpdatePlan publishes into an existing plan.
func WithUpdatePlan(id int) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.UpdatePlan = id
	}
}

// WithRunName fixes the name of created runs and plans.
func WithRunName(name string) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.RunName = name
	}
}

// WithCommand sets the test command used by "run".
func WithCommand(command string) ConfigOption {
	return func(c *config.Config) {
		c.TestRail.Command = command
	}
}

// TempProject writes cfg to <tmp>/.testrail/config.yaml and returns the
// project directory. The directory is removed when the test ends.
func TempProject(t *testing.T, cfg *config.Config) string {
	t.Helper()

	dir := t.TempDir()
	if cfg == nil {
		return dir
	}
	if err := cfg.Save(filepath.Join(dir, ".testrail", "config.yaml")); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

// Stream builds `go test -json` output.
type Stream struct {
	pkg   string
	lines []string
	clock time.Time
}

// NewStream starts a stream for one package.
func NewStream(pkg string) *Stream {
	return &Stream{pkg: pkg, clock: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (s *Stream) add(action, test, output string, elapsed float64) *Stream {
	s.clock = s.clock.Add(time.Millisecond)
	ev := struct {
		Time    time.Time `json:"Time"`
		Action  string    `json:"Action"`
		Package string    `json:"Package"`
		Test    string    `json:"Test,omitempty"`
		Elapsed float64   `json:"Elapsed,omitempty"`
		Output  string    `json:"Output,omitempty"`
	}{s.clock, action, s.pkg, test, elapsed, output}

	data, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	s.lines = append(s.lines, string(data))
	return s
}

// Run adds a run event and its "=== RUN" line.
func (s *Stream) Run(test string) *Stream {
	s.add("run", test, "", 0)
	return s.add("output", test, "=== RUN   "+test+"\n", 0)
}

// Log adds a t.Log style output line.
func (s *Stream) Log(test, line string) *Stream {
	return s.add("output", test, "    "+line+"\n", 0)
}

// Tag adds the output line written by testrail.Case.
func (s *Stream) Tag(test string, ids ...string) *Stream {
	return s.Log(test, "case.go:17: testrail: "+strings.Join(ids, " "))
}

// Pass ends a test successfully.
func (s *Stream) Pass(test string) *Stream {
	s.add("output", test, "--- PASS: "+test+" (0.00s)\n", 0)
	return s.add("pass", test, "", 0.01)
}

// Fail ends a test with a failure.
func (s *Stream) Fail(test string) *Stream {
	s.add("output", test, "--- FAIL: "+test+" (0.00s)\n", 0)
	return s.add("fail", test, "", 0.01)
}

// Skip ends a skipped test.
func (s *Stream) Skip(test string) *Stream {
	s.add("output", test, "--- SKIP: "+test+" (0.00s)\n", 0)
	return s.add("skip", test, "", 0)
}

// Raw appends a line that is not a test2json event.
func (s *Stream) Raw(line string) *Stream {
	s.lines = append(s.lines, line)
	return s
}

// Done adds the package-level pass or fail event.
func (s *Stream) Done(ok bool) *Stream {
	if ok {
		return s.add("pass", "", "", 0.1)
	}
	return s.add("fail", "", "", 0.1)
}

// String returns the stream, one event per line.
func (s *Stream) String() string {
	return strings.Join(s.lines, "\n") + "\n"
}
