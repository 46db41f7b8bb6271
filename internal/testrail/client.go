// Package testrail is a small client for the TestRail v2 REST API.
//
// Every call is synchronous and issued on the caller's goroutine; the
// client never retries and never runs requests concurrently.
package testrail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
)

const apiPrefix = "/api/v2/"

// Client talks to one TestRail instance on behalf of one project.
type Client struct {
	config *config.TestRailConfig
	client HTTPClient
	base   string
	auth   string // base64 encoded username:password
	onErr  ErrorHandler
	log    logrus.FieldLogger
}

// NewClient creates a client. The configuration is validated eagerly and
// a *config.Error is returned when a required option is missing.
func NewClient(cfg *config.TestRailConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := applyOptions(opts)

	base := options.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/index.php", cfg.Domain)
	}

	return &Client{
		config: cfg,
		client: options.httpClient,
		base:   strings.TrimSuffix(base, "/"),
		auth:   base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password)),
		onErr:  options.onError,
		log:    options.log,
	}, nil
}

// Base returns the index.php URL all API and view links hang off.
func (c *Client) Base() string {
	return c.base
}

// ViewURL returns the browser link for a run or plan, kind being "runs"
// or "plans".
func (c *Client) ViewURL(kind string, id int) string {
	return fmt.Sprintf("%s?/%s/view/%d", c.base, kind, id)
}

func (c *Client) url(op string) string {
	return c.base + "?" + apiPrefix + op
}

func (c *Client) get(ctx context.Context, op string, out interface{}) error {
	return c.request(ctx, http.MethodGet, op, nil, out)
}

func (c *Client) post(ctx context.Context, op string, body, out interface{}) error {
	return c.request(ctx, http.MethodPost, op, body, out)
}

// request performs one API call and decodes the response into out.
// A response with an "error" field becomes a *RemoteError, or is handed to
// the error handler when one is installed.
func (c *Client) request(ctx context.Context, method, op string, body, out interface{}) error {
	data, err := c.do(ctx, method, op, body)
	if err != nil {
		return err
	}
	if data == nil || out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", opName(op), err)
	}
	return nil
}

// do performs the HTTP exchange and returns the raw body. It returns a nil
// body and nil error when a remote error was passed to the error handler.
func (c *Client) do(ctx context.Context, method, op string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", opName(op), err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(op), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Basic "+c.auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.log.WithFields(logrus.Fields{"method": method, "op": op}).Debug("testrail request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", opName(op), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", opName(op), err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s failed: HTTP %d", opName(op), resp.StatusCode)
		}
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%s returned non-JSON response (HTTP %d)", opName(op), resp.StatusCode)
	}

	if trimmed[0] == '{' {
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Error != "" {
			remoteErr := &RemoteError{
				Operation:  opName(op),
				StatusCode: resp.StatusCode,
				Message:    envelope.Error,
			}
			c.log.WithField("op", op).Errorf("Error: %s", string(trimmed))
			if c.onErr != nil {
				c.onErr(remoteErr)
				return nil, nil
			}
			return nil, remoteErr
		}
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s failed: HTTP %d", opName(op), resp.StatusCode)
	}

	return json.RawMessage(trimmed), nil
}

// getList fetches a list endpoint. Both the bare array returned by older
// TestRail versions and the paginated envelope are accepted; pages are
// followed through _links.next one request at a time.
func getList[T any](ctx context.Context, c *Client, op, key string) ([]T, error) {
	var all []T

	for op != "" {
		data, err := c.do(ctx, http.MethodGet, op, nil)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return all, nil
		}

		if data[0] == '[' {
			var items []T
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, fmt.Errorf("failed to parse %s response: %w", opName(op), err)
			}
			return append(all, items...), nil
		}

		var page map[string]json.RawMessage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse %s response: %w", opName(op), err)
		}

		if raw, ok := page[key]; ok {
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to parse %s response: %w", opName(op), err)
			}
			all = append(all, items...)
		}

		op = nextPage(page)
	}

	return all, nil
}

func nextPage(page map[string]json.RawMessage) string {
	raw, ok := page["_links"]
	if !ok {
		return ""
	}
	var links struct {
		Next *string `json:"next"`
	}
	if err := json.Unmarshal(raw, &links); err != nil || links.Next == nil {
		return ""
	}
	return strings.TrimPrefix(*links.Next, apiPrefix)
}

// opName strips arguments from an operation path: "get_plan/5" -> "get_plan".
func opName(op string) string {
	if i := strings.IndexByte(op, '/'); i >= 0 {
		return op[:i]
	}
	return op
}

// GetPlan retrieves a test plan with its entries.
func (c *Client) GetPlan(ctx context.Context, planID int) (*Plan, error) {
	plan := &Plan{}
	if err := c.get(ctx, fmt.Sprintf("get_plan/%d", planID), plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetSuite retrieves a suite.
func (c *Client) GetSuite(ctx context.Context, suiteID int) (*Suite, error) {
	suite := &Suite{}
	if err := c.get(ctx, fmt.Sprintf("get_suite/%d", suiteID), suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// GetCase retrieves a single case.
func (c *Client) GetCase(ctx context.Context, caseID int) (*Case, error) {
	tc := &Case{}
	if err := c.get(ctx, fmt.Sprintf("get_case/%d", caseID), tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// GetRun retrieves a run.
func (c *Client) GetRun(ctx context.Context, runID int) (*Run, error) {
	run := &Run{}
	if err := c.get(ctx, fmt.Sprintf("get_run/%d", runID), run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetCasesForSuite lists the cases of a suite in a project.
func (c *Client) GetCasesForSuite(ctx context.Context, projectID, suiteID int) ([]Case, error) {
	return getList[Case](ctx, c, fmt.Sprintf("get_cases/%d&suite_id=%d", projectID, suiteID), "cases")
}

// GetSections lists the sections of a suite in the configured project.
func (c *Client) GetSections(ctx context.Context, suiteID int) ([]Section, error) {
	return getList[Section](ctx, c, fmt.Sprintf("get_sections/%d&suite_id=%d", c.config.ProjectID, suiteID), "sections")
}

// GetTestsForRun lists the tests of a run.
func (c *Client) GetTestsForRun(ctx context.Context, runID int) ([]Test, error) {
	return getList[Test](ctx, c, fmt.Sprintf("get_tests/%d", runID), "tests")
}

// AddRun creates a run in the configured project.
func (c *Client) AddRun(ctx context.Context, name, description string, suiteID int, caseIDs []int) (*Run, error) {
	body := struct {
		SuiteID      int    `json:"suite_id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		AssignedToID int    `json:"assignedto_id,omitempty"`
		IncludeAll   bool   `json:"include_all"`
		CaseIDs      []int  `json:"case_ids"`
	}{
		SuiteID:      suiteID,
		Name:         name,
		Description:  description,
		AssignedToID: c.config.AssignedToID,
		IncludeAll:   c.config.IncludeAll,
		CaseIDs:      nonNil(caseIDs),
	}

	run := &Run{}
	if err := c.post(ctx, fmt.Sprintf("add_run/%d", c.config.ProjectID), body, run); err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateRun replaces the case selection of a run.
func (c *Client) UpdateRun(ctx context.Context, runID int, caseIDs []int) (*Run, error) {
	run := &Run{}
	if err := c.post(ctx, fmt.Sprintf("update_run/%d", runID), caseIDsBody{CaseIDs: nonNil(caseIDs)}, run); err != nil {
		return nil, err
	}
	return run, nil
}

// AddCasesToRun adds caseIDs to the cases already in a run and returns the
// merged selection.
func (c *Client) AddCasesToRun(ctx context.Context, runID int, caseIDs []int) ([]int, error) {
	tests, err := c.GetTestsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	current := make([]int, 0, len(tests))
	for _, t := range tests {
		current = append(current, t.CaseID)
	}
	merged := caseid.Union(current, caseIDs)

	c.log.WithFields(logrus.Fields{"run": runID, "cases": merged}).Info("all case list")

	if _, err := c.UpdateRun(ctx, runID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// AddPlan creates a plan in the configured project.
func (c *Client) AddPlan(ctx context.Context, name, description string, entries []PlanEntryInput) (*Plan, error) {
	if entries == nil {
		entries = []PlanEntryInput{}
	}
	body := struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		Entries     []PlanEntryInput `json:"entries"`
	}{name, description, entries}

	plan := &Plan{}
	if err := c.post(ctx, fmt.Sprintf("add_plan/%d", c.config.ProjectID), body, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// AddPlanEntry adds a run for one suite to a plan.
func (c *Client) AddPlanEntry(ctx context.Context, planID, suiteID int, name, description string, caseIDs []int) (*PlanEntry, error) {
	body := PlanEntryInput{
		SuiteID:      suiteID,
		Name:         name,
		Description:  description,
		AssignedToID: c.config.AssignedToID,
		IncludeAll:   c.config.IncludeAll,
		CaseIDs:      nonNil(caseIDs),
	}

	entry := &PlanEntry{}
	if err := c.post(ctx, fmt.Sprintf("add_plan_entry/%d", planID), body, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdatePlanEntry replaces the case selection of a plan entry.
func (c *Client) UpdatePlanEntry(ctx context.Context, planID int, entryID string, caseIDs []int) (*PlanEntry, error) {
	entry := &PlanEntry{}
	op := fmt.Sprintf("update_plan_entry/%d/%s", planID, entryID)
	if err := c.post(ctx, op, caseIDsBody{CaseIDs: nonNil(caseIDs)}, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AddResultsForCases pushes results to a run and returns the raw response
// body. An empty result list sends nothing.
func (c *Client) AddResultsForCases(ctx context.Context, runID int, results []CaseResult) (json.RawMessage, error) {
	if len(results) == 0 {
		return nil, nil
	}

	body := struct {
		Results []CaseResult `json:"results"`
	}{results}

	return c.do(ctx, http.MethodPost, fmt.Sprintf("add_results_for_cases/%d", runID), body)
}

// AddCase creates an automated case in a section.
func (c *Client) AddCase(ctx context.Context, sectionID int, title, steps string) (*Case, error) {
	body := map[string]interface{}{
		"title":                  title,
		"custom_status":          1,
		"custom_steps":           steps,
		"custom_automation_type": automationImplemented,
	}

	tc := &Case{}
	if err := c.post(ctx, fmt.Sprintf("add_case/%d", sectionID), body, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// UpdateCase changes the title and steps of a case.
func (c *Client) UpdateCase(ctx context.Context, caseID int, title, steps string) (*Case, error) {
	body := map[string]interface{}{
		"title":        title,
		"custom_steps": steps,
	}

	tc := &Case{}
	if err := c.post(ctx, fmt.Sprintf("update_case/%d", caseID), body, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// nonNil keeps case_ids encoded as [] rather than null.
func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
