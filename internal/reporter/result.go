package reporter

import (
	"time"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/events"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/testrail"
)

// Key identifies one result: a case on a given runner.
type Key struct {
	Browser string
	CaseID  int
}

// Result is the accumulated outcome of one case on one runner.
type Result struct {
	CaseID   int                 `json:"case_id"`
	StatusID Status              `json:"status_id"`
	Comment  string              `json:"comment,omitempty"`
	Elapsed  time.Duration       `json:"-"`
	Runner   events.Capabilities `json:"-"`
}

// CaseResult converts the result to the add_results_for_cases payload.
func (r Result) CaseResult() testrail.CaseResult {
	return testrail.CaseResult{
		CaseID:   r.CaseID,
		StatusID: int(r.StatusID),
		Comment:  r.Comment,
		Elapsed:  testrail.Timespan(r.Elapsed),
	}
}

// Counts are the step totals of a run, whether or not a step matched a case.
type Counts struct {
	Passed  int
	Failed  int
	Pending int
}

// Total returns the number of finished steps.
func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Pending
}

func caseResults(results []Result) []testrail.CaseResult {
	out := make([]testrail.CaseResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.CaseResult())
	}
	return out
}

func caseIDsOf(results []Result) []int {
	seen := make(map[int]bool, len(results))
	var ids []int
	for _, r := range results {
		if !seen[r.CaseID] {
			seen[r.CaseID] = true
			ids = append(ids, r.CaseID)
		}
	}
	return ids
}

func resultsFor(results []Result, caseIDs []int) []Result {
	keep := make(map[int]bool, len(caseIDs))
	for _, id := range caseIDs {
		keep[id] = true
	}

	var out []Result
	for _, r := range results {
		if keep[r.CaseID] {
			out = append(out, r)
		}
	}
	return out
}
