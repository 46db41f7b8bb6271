package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/testrail"
)

// ErrAlreadyPublished is returned by a second Publish on the same reporter.
var ErrAlreadyPublished = errors.New("results already published")

// Mode tells how results were published.
type Mode string

const (
	ModeNone Mode = "none"
	ModeRun  Mode = "run"
	ModePlan Mode = "plan"
)

// Summary describes what a publish did.
type Summary struct {
	Mode   Mode
	RunIDs []int
	PlanID int
	URL    string
	// Pushed counts the results sent with add_results_for_cases.
	Pushed int
}

// Publish sends the collected results to TestRail. A list of suite ids
// publishes into a plan, a single suite id into a run. Any API error
// stops the publish; calls already made are not undone.
func (r *Reporter) Publish(ctx context.Context) (*Summary, error) {
	if r.state != StateCollecting {
		return nil, ErrAlreadyPublished
	}
	r.state = StatePublishing
	defer func() { r.state = StateDone }()

	results := r.Results()
	if len(results) == 0 {
		r.log.Warn("No testcases were matched. Ensure that your tests are declared correctly and matches TCxxx")
		r.summary = &Summary{Mode: ModeNone}
		return r.summary, nil
	}
	if r.api == nil {
		return nil, errors.New("no TestRail client configured")
	}

	p := &publication{r: r, results: results, description: r.Description()}

	var err error
	if r.cfg.SuiteID.IsMulti() {
		err = p.plan(ctx)
	} else {
		err = p.run(ctx)
	}
	if err != nil {
		return nil, err
	}

	r.log.WithField("mode", p.summary.Mode).Infof("Results published to %s", p.summary.URL)

	if r.onComplete != nil {
		r.onComplete(p.lastBody)
	}
	r.summary = &p.summary
	return r.summary, nil
}

// publication holds the state of one Publish call.
type publication struct {
	r           *Reporter
	results     []Result
	description string
	summary     Summary
	lastBody    json.RawMessage
}

func (p *publication) push(ctx context.Context, runID int, results []Result) error {
	body, err := p.r.api.AddResultsForCases(ctx, runID, caseResults(results))
	if err != nil {
		return fmt.Errorf("failed to add results to run %d: %w", runID, err)
	}
	if body != nil {
		p.lastBody = body
	}
	p.summary.Pushed += len(results)
	p.summary.RunIDs = append(p.summary.RunIDs, runID)
	return nil
}

// run publishes into a single run, new or existing.
func (p *publication) run(ctx context.Context) error {
	api := p.r.api
	cfg := p.r.cfg
	ids := caseIDsOf(p.results)
	p.summary.Mode = ModeRun

	runID := cfg.UpdateRun
	if runID != 0 {
		if _, err := api.AddCasesToRun(ctx, runID, ids); err != nil {
			return fmt.Errorf("failed to add cases to run %d: %w", runID, err)
		}
	} else {
		run, err := api.AddRun(ctx, p.r.name("Test run"), p.description, cfg.SuiteID.First(), ids)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		runID = run.ID
	}

	if err := p.push(ctx, runID, p.results); err != nil {
		return err
	}
	p.summary.URL = api.ViewURL("runs", runID)
	return nil
}

// plan publishes into a plan, one entry per suite.
func (p *publication) plan(ctx context.Context) error {
	if p.r.cfg.UpdatePlan != 0 {
		return p.updatePlan(ctx)
	}
	return p.addPlan(ctx)
}

func (p *publication) addPlan(ctx context.Context) error {
	api := p.r.api
	cfg := p.r.cfg
	p.summary.Mode = ModePlan

	plan, err := api.AddPlan(ctx, p.r.name("Test plan"), p.description, nil)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.summary.PlanID = plan.ID

	for _, suiteID := range cfg.SuiteID.IDs {
		suite, err := api.GetSuite(ctx, suiteID)
		if err != nil {
			return fmt.Errorf("failed to get suite %d: %w", suiteID, err)
		}
		suiteCases, err := p.suiteCaseIDs(ctx, suiteID)
		if err != nil {
			return err
		}

		ids := caseid.Filter(caseIDsOf(p.results), suiteCases)
		entry, err := api.AddPlanEntry(ctx, plan.ID, suiteID, p.r.name(suite.Name), p.description, ids)
		if err != nil {
			return fmt.Errorf("failed to add plan entry for suite %d: %w", suiteID, err)
		}

		if err := p.push(ctx, entry.FirstRunID(), resultsFor(p.results, ids)); err != nil {
			return err
		}
	}

	p.summary.URL = api.ViewURL("plans", plan.ID)
	return nil
}

func (p *publication) updatePlan(ctx context.Context) error {
	api := p.r.api
	cfg := p.r.cfg
	p.summary.Mode = ModePlan

	plan, err := api.GetPlan(ctx, cfg.UpdatePlan)
	if err != nil {
		return fmt.Errorf("failed to get plan %d: %w", cfg.UpdatePlan, err)
	}
	p.summary.PlanID = plan.ID

	for _, entry := range plan.Entries {
		suiteCases, err := p.suiteCaseIDs(ctx, entry.SuiteID)
		if err != nil {
			return err
		}

		newIDs := caseid.Filter(caseIDsOf(p.results), suiteCases)
		if len(newIDs) == 0 {
			p.r.log.WithField("suite", entry.SuiteID).Debug("no results for plan entry")
			continue
		}

		runID := entry.FirstRunID()
		if runID == 0 {
			p.r.log.WithFields(logrus.Fields{"plan": plan.ID, "entry": entry.ID}).Warn("plan entry has no run, skipping")
			continue
		}

		tests, err := api.GetTestsForRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to get tests for run %d: %w", runID, err)
		}
		existing := make([]int, 0, len(tests))
		for _, t := range tests {
			existing = append(existing, t.CaseID)
		}

		if _, err := api.UpdatePlanEntry(ctx, plan.ID, entry.ID, caseid.Union(existing, newIDs)); err != nil {
			return fmt.Errorf("failed to update plan entry %s: %w", entry.ID, err)
		}

		if err := p.push(ctx, runID, resultsFor(p.results, newIDs)); err != nil {
			return err
		}
	}

	p.summary.URL = api.ViewURL("plans", plan.ID)
	return nil
}

func (p *publication) suiteCaseIDs(ctx context.Context, suiteID int) ([]int, error) {
	cases, err := p.r.api.GetCasesForSuite(ctx, p.r.cfg.ProjectID, suiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cases for suite %d: %w", suiteID, err)
	}
	ids := make([]int, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// name returns the configured run name, or "<prefix> - <browsers> -
// <platform> - <time>".
func (r *Reporter) name(prefix string) string {
	if r.cfg.RunName != "" {
		return r.cfg.RunName
	}

	var browsers []string
	for _, c := range r.runners {
		browsers = append(browsers, c.BrowserName)
	}

	parts := []string{prefix}
	if len(browsers) > 0 {
		parts = append(parts, strings.Join(browsers, ", "))
	}
	if r.cfg.Platform != "" {
		parts = append(parts, r.cfg.Platform)
	}
	parts = append(parts, r.now().Format("2006-01-02 15:04:05"))
	return strings.Join(parts, " - ")
}

var _ API = (*testrail.Client)(nil)
