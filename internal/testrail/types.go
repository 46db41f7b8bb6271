package testrail

import (
	"fmt"
	"strings"
	"time"
)

// Plan is a TestRail test plan.
type Plan struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	ProjectID   int         `json:"project_id,omitempty"`
	URL         string      `json:"url,omitempty"`
	Entries     []PlanEntry `json:"entries"`
}

// PlanEntry groups the runs of one suite inside a plan.
type PlanEntry struct {
	ID      string `json:"id"`
	SuiteID int    `json:"suite_id"`
	Name    string `json:"name"`
	Runs    []Run  `json:"runs"`
}

// FirstRunID returns the id of the entry's first run, or 0.
func (e *PlanEntry) FirstRunID() int {
	if e == nil || len(e.Runs) == 0 {
		return 0
	}
	return e.Runs[0].ID
}

// Run is a TestRail test run.
type Run struct {
	ID          int    `json:"id"`
	SuiteID     int    `json:"suite_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PlanID      int    `json:"plan_id,omitempty"`
	IncludeAll  bool   `json:"include_all"`
	URL         string `json:"url,omitempty"`
}

// Suite is a TestRail test suite.
type Suite struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   int    `json:"project_id"`
	URL         string `json:"url,omitempty"`
}

// Case is a TestRail test case.
type Case struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	SuiteID   int    `json:"suite_id"`
	SectionID int    `json:"section_id"`
}

// Section is a TestRail suite section.
type Section struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	SuiteID  int    `json:"suite_id"`
	ParentID *int   `json:"parent_id"`
	Depth    int    `json:"depth"`
}

// Test is an instance of a case inside a run.
type Test struct {
	ID       int    `json:"id"`
	CaseID   int    `json:"case_id"`
	RunID    int    `json:"run_id"`
	StatusID int    `json:"status_id"`
	Title    string `json:"title"`
}

// CaseResult is one result pushed with add_results_for_cases.
type CaseResult struct {
	CaseID   int    `json:"case_id"`
	StatusID int    `json:"status_id"`
	Comment  string `json:"comment,omitempty"`
	Defects  string `json:"defects,omitempty"`
	Elapsed  string `json:"elapsed,omitempty"`
}

// Timespan formats d as a TestRail timespan such as "1m 5s". Durations
// under a second round up to "1s", the smallest span TestRail accepts;
// zero or less gives "".
func Timespan(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	secs := int((d + time.Second - 1) / time.Second)

	var parts []string
	if h := secs / 3600; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m := secs % 3600 / 60; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s := secs % 60; s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// PlanEntryInput describes an entry created together with a plan.
type PlanEntryInput struct {
	SuiteID      int    `json:"suite_id"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	AssignedToID int    `json:"assignedto_id,omitempty"`
	IncludeAll   bool   `json:"include_all"`
	CaseIDs      []int  `json:"case_ids"`
}

// caseIDsBody is the body of update_run and update_plan_entry.
type caseIDsBody struct {
	CaseIDs []int `json:"case_ids"`
}

// automationImplemented marks a case as automated.
const automationImplemented = 3
