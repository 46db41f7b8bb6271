// Package reporter accumulates per-case results from test runner
// lifecycle events and publishes them to TestRail when the run ends.
package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/events"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/testrail"
)

// Name is the human readable reporter name.
const Name = "Go TestRail Reporter"

// API is the subset of the TestRail client the publisher needs.
type API interface {
	GetPlan(ctx context.Context, planID int) (*testrail.Plan, error)
	GetSuite(ctx context.Context, suiteID int) (*testrail.Suite, error)
	GetCasesForSuite(ctx context.Context, projectID, suiteID int) ([]testrail.Case, error)
	GetTestsForRun(ctx context.Context, runID int) ([]testrail.Test, error)
	AddRun(ctx context.Context, name, description string, suiteID int, caseIDs []int) (*testrail.Run, error)
	AddCasesToRun(ctx context.Context, runID int, caseIDs []int) ([]int, error)
	AddPlan(ctx context.Context, name, description string, entries []testrail.PlanEntryInput) (*testrail.Plan, error)
	AddPlanEntry(ctx context.Context, planID, suiteID int, name, description string, caseIDs []int) (*testrail.PlanEntry, error)
	UpdatePlanEntry(ctx context.Context, planID int, entryID string, caseIDs []int) (*testrail.PlanEntry, error)
	AddResultsForCases(ctx context.Context, runID int, results []testrail.CaseResult) (json.RawMessage, error)
	ViewURL(kind string, id int) string
}

// State is the lifecycle state of a Reporter.
type State int

const (
	StateCollecting State = iota
	StatePublishing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StatePublishing:
		return "publishing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger for warnings and the published URL.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Reporter) {
		r.log = log
	}
}

// WithOnComplete registers a callback receiving the body of the last
// add_results_for_cases call of a publish.
func WithOnComplete(fn func(body json.RawMessage)) Option {
	return func(r *Reporter) {
		r.onComplete = fn
	}
}

// WithClock replaces time.Now for run names.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// Reporter collects results for one test run. It is driven by a single
// event source and is not safe for concurrent use.
type Reporter struct {
	cfg        *config.TestRailConfig
	api        API
	log        logrus.FieldLogger
	onComplete func(body json.RawMessage)
	now        func() time.Time

	state   State
	summary *Summary
	results map[Key]*Result
	order   []Key
	runners []events.Capabilities
	counts  Counts
	lines   []string

	// Scenario outline tracking: consecutive suites with the same title
	// map to successive case ids of that title.
	suiteCaseID    int
	prevSuiteTitle string
	exampleCount   int
}

// New creates a reporter for one run. The configuration is validated
// eagerly; a missing required option is returned as *config.Error.
func New(cfg *config.TestRailConfig, api API, opts ...Option) (*Reporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reporter{
		cfg:     cfg,
		api:     api,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		results: make(map[Key]*Result),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Attach registers the reporter's handlers on an event source. Publishing
// on the end event uses ctx.
func (r *Reporter) Attach(ctx context.Context, src events.Source) {
	r.Collect(src)
	src.On(events.End, func(p interface{}) error {
		ev, err := payload[events.EndOfRun](events.End, p)
		if err != nil {
			return err
		}
		_, err = r.End(ctx, ev)
		return err
	})
}

// Collect registers every handler except the one for the end event, so
// results accumulate but are never published.
func (r *Reporter) Collect(src events.Source) {
	src.On(events.RunnerStart, func(p interface{}) error {
		ev, err := payload[events.Runner](events.RunnerStart, p)
		if err != nil {
			return err
		}
		r.RunnerStart(ev)
		return nil
	})
	src.On(events.SuiteStart, func(p interface{}) error {
		ev, err := payload[events.Suite](events.SuiteStart, p)
		if err != nil {
			return err
		}
		r.SuiteStart(ev)
		return nil
	})
	src.On(events.TestStart, func(p interface{}) error {
		ev, err := payload[events.Test](events.TestStart, p)
		if err != nil {
			return err
		}
		r.TestStart(ev)
		return nil
	})
	src.On(events.TestPending, func(p interface{}) error {
		ev, err := payload[events.Test](events.TestPending, p)
		if err != nil {
			return err
		}
		r.TestPending(ev)
		return nil
	})
	src.On(events.TestPass, func(p interface{}) error {
		ev, err := payload[events.Test](events.TestPass, p)
		if err != nil {
			return err
		}
		r.TestPass(ev)
		return nil
	})
	src.On(events.TestFail, func(p interface{}) error {
		ev, err := payload[events.Test](events.TestFail, p)
		if err != nil {
			return err
		}
		r.TestFail(ev)
		return nil
	})
}

func payload[T any](name string, p interface{}) (T, error) {
	switch v := p.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s: unexpected payload %T", name, p)
}

// RunnerStart records the capabilities of a runner.
func (r *Reporter) RunnerStart(ev events.Runner) {
	r.addRunner(ev.Capabilities)
}

// SuiteStart resolves the case id used by steps that carry none of their
// own. A suite title repeated back to back is treated as the next example
// of a scenario outline and takes the next id of the title.
func (r *Reporter) SuiteStart(ev events.Suite) {
	ids := caseid.ExtractAll(append([]string{ev.Title}, ev.Tags...)...)
	if len(ids) == 0 {
		r.suiteCaseID = 0
		r.prevSuiteTitle = ev.Title
		r.exampleCount = 0
		return
	}

	if r.prevSuiteTitle == ev.Title {
		r.exampleCount++
	} else {
		r.exampleCount = 0
	}
	r.prevSuiteTitle = ev.Title

	switch {
	case r.exampleCount == 0:
		r.suiteCaseID, _ = caseid.First(r.log, strings.Join(append([]string{ev.Title}, ev.Tags...), " "))
	case r.exampleCount < len(ids):
		r.suiteCaseID = ids[r.exampleCount]
	default:
		r.log.WithField("suite", ev.Title).Warnf("example %d has no case id of its own, using C%d", r.exampleCount+1, ids[len(ids)-1])
		r.suiteCaseID = ids[len(ids)-1]
	}
}

// TestStart notes the start of a step.
func (r *Reporter) TestStart(ev events.Test) {
	r.log.WithField("test", ev.Title).Debug("test started")
}

// TestPending records a skipped step.
func (r *Reporter) TestPending(ev events.Test) {
	r.counts.Pending++
	r.record(ev, OutcomePending, ev.Title+": pending")
}

// TestPass records a passed step.
func (r *Reporter) TestPass(ev events.Test) {
	r.counts.Passed++
	r.record(ev, OutcomePassed, ev.Title+": pass")
}

// TestFail records a failed step with its error.
func (r *Reporter) TestFail(ev events.Test) {
	r.counts.Failed++

	parts := []string{ev.Title + ": fail"}
	if ev.Err != nil {
		if msg := strings.TrimSpace(ev.Err.Message); msg != "" {
			parts = append(parts, msg)
		}
		if stack := strings.TrimSpace(ev.Err.Stack); stack != "" {
			parts = append(parts, stack)
		}
	}
	r.record(ev, OutcomeFailed, strings.Join(parts, "\n"))
}

// End publishes the collected results.
func (r *Reporter) End(ctx context.Context, ev events.EndOfRun) (*Summary, error) {
	for _, c := range ev.Capabilities {
		r.addRunner(c)
	}
	return r.Publish(ctx)
}

// record upserts one result per case id resolved for the step. Ids in the
// step's own title and tags win over the suite's id; a step resolving to
// no id is ignored.
func (r *Reporter) record(ev events.Test, outcome Outcome, comment string) {
	r.lines = append(r.lines, comment)

	ids := caseid.ExtractAll(append([]string{ev.Title}, ev.Tags...)...)
	if len(ids) == 0 && r.suiteCaseID != 0 {
		ids = []int{r.suiteCaseID}
	}
	if len(ids) == 0 {
		return
	}

	runner := ev.Runner
	if runner.BrowserName == "" {
		runner.BrowserName = r.cfg.BrowserName
	}

	for _, id := range ids {
		r.upsert(Key{Browser: runner.BrowserName, CaseID: id}, runner, outcome, comment, ev.Elapsed)
	}
}

// upsert applies the merge policy: comments accumulate in order, Failed is
// sticky, a pass replaces any other status, pending never changes one.
// Elapsed times of the steps add up.
func (r *Reporter) upsert(key Key, runner events.Capabilities, outcome Outcome, comment string, elapsed time.Duration) {
	status := r.statusFor(outcome)

	existing, ok := r.results[key]
	if !ok {
		r.results[key] = &Result{
			CaseID:   key.CaseID,
			StatusID: status,
			Comment:  comment,
			Elapsed:  elapsed,
			Runner:   runner,
		}
		r.order = append(r.order, key)
		return
	}

	existing.Comment = existing.Comment + "\n" + comment
	existing.Elapsed += elapsed

	failed := r.statusFor(OutcomeFailed)
	switch outcome {
	case OutcomeFailed:
		existing.StatusID = failed
	case OutcomePassed:
		if existing.StatusID != failed {
			existing.StatusID = status
		}
	}
}

func (r *Reporter) statusFor(outcome Outcome) Status {
	return Status(r.cfg.Status(string(outcome), int(defaultStatus[outcome])))
}

func (r *Reporter) addRunner(c events.Capabilities) {
	if c.BrowserName == "" {
		c.BrowserName = r.cfg.BrowserName
	}
	for _, known := range r.runners {
		if known == c {
			return
		}
	}
	r.runners = append(r.runners, c)
}

// Results returns the accumulated results in first-seen order.
func (r *Reporter) Results() []Result {
	out := make([]Result, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.results[key])
	}
	return out
}

// Result returns the result for a key.
func (r *Reporter) Result(key Key) (Result, bool) {
	res, ok := r.results[key]
	if !ok {
		return Result{}, false
	}
	return *res, true
}

// Counts returns the step counters.
func (r *Reporter) Counts() Counts {
	return r.counts
}

// Lines returns one "<title>: <outcome>" line per finished step.
func (r *Reporter) Lines() []string {
	return append([]string(nil), r.lines...)
}

// Runners returns the runners seen so far.
func (r *Reporter) Runners() []events.Capabilities {
	return append([]events.Capabilities(nil), r.runners...)
}

// Summary returns what the last publish did, or nil before one finished.
func (r *Reporter) Summary() *Summary {
	return r.summary
}

// State returns the lifecycle state.
func (r *Reporter) State() State {
	return r.state
}

// Description returns the execution summary used as run description.
func (r *Reporter) Description() string {
	c := r.counts
	return fmt.Sprintf("Execution summary:\nPassed steps: %d\nFailed steps: %d\nSkipped steps: %d\nTotal steps: %d",
		c.Passed, c.Failed, c.Pending, c.Total())
}
