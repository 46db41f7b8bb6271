package testrail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/config"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/testrail/testutil"
)

func testConfig() *config.TestRailConfig {
	return &config.TestRailConfig{
		Domain:    "example.testrail.io",
		Username:  "qa@example.com",
		Password:  "api-key",
		ProjectID: 7,
		SuiteID:   config.SingleSuite(1723),
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClient(t *testing.T, server *testutil.MockServer, cfg *config.TestRailConfig, opts ...Option) *Client {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	opts = append([]Option{WithBaseURL(server.BaseURL()), WithLogger(quietLogger())}, opts...)
	client, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

// MockHTTPClient implements HTTPClient for testing.
type MockHTTPClient struct {
	Response *http.Response
	Err      error
	Requests []*http.Request
}

// Do records the request and returns the configured response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	return m.Response, m.Err
}

func TestHTTPClientInterface(t *testing.T) {
	var _ HTTPClient = &http.Client{}
	var _ HTTPClient = &MockHTTPClient{}
	var _ HTTPClient = DefaultHTTPClient()
}

func TestNewClientValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Username = ""

	_, err := NewClient(cfg)
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
	if cfgErr.Field != "username" {
		t.Errorf("Field = %q, want username", cfgErr.Field)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	client, err := NewClient(testConfig())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.Base() != "https://example.testrail.io/index.php" {
		t.Errorf("Base() = %q", client.Base())
	}
	if got := client.url("get_plan/5"); got != "https://example.testrail.io/index.php?/api/v2/get_plan/5" {
		t.Errorf("url() = %q", got)
	}
	if got := client.ViewURL("runs", 12); got != "https://example.testrail.io/index.php?/runs/view/12" {
		t.Errorf("ViewURL() = %q", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	mock := &MockHTTPClient{
		Response: &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewBufferString(`{"id":1723,"name":"Regression"}`)),
		},
	}

	client, err := NewClient(testConfig(), WithHTTPClient(mock), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	suite, err := client.GetSuite(context.Background(), 1723)
	if err != nil {
		t.Fatalf("GetSuite failed: %v", err)
	}
	if suite.Name != "Regression" {
		t.Errorf("Name = %q", suite.Name)
	}

	if len(mock.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(mock.Requests))
	}
	req := mock.Requests[0]

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("qa@example.com:api-key"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if req.URL.RawQuery != "/api/v2/get_suite/1723" {
		t.Errorf("RawQuery = %q", req.URL.RawQuery)
	}
}

func TestNetworkErrorPropagates(t *testing.T) {
	mock := &MockHTTPClient{Err: errors.New("connection refused")}
	client, _ := NewClient(testConfig(), WithHTTPClient(mock), WithLogger(quietLogger()))

	_, err := client.GetPlan(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected transport error, got %v", err)
	}
	if len(mock.Requests) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(mock.Requests))
	}
}

func TestRemoteError(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectGET("get_plan/99", testutil.MockResponse{
		StatusCode: 400,
		Body:       `{"error":"Field :plan_id is not a valid test plan."}`,
	})

	client := newTestClient(t, server, nil)

	_, err := client.GetPlan(context.Background(), 99)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
	if remoteErr.Message != "Field :plan_id is not a valid test plan." {
		t.Errorf("Message = %q", remoteErr.Message)
	}
	if remoteErr.Operation != "get_plan" || remoteErr.StatusCode != 400 {
		t.Errorf("RemoteError = %+v", remoteErr)
	}
}

func TestRemoteErrorHandler(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectGET("get_suite/1", testutil.MockResponse{
		StatusCode: 400,
		Body:       `{"error":"no access"}`,
	})

	var handled []string
	client := newTestClient(t, server, nil, WithErrorHandler(func(err *RemoteError) {
		handled = append(handled, err.Message)
	}))

	suite, err := client.GetSuite(context.Background(), 1)
	if err != nil {
		t.Fatalf("handler should swallow the error, got %v", err)
	}
	if suite == nil || suite.ID != 0 {
		t.Errorf("expected zero suite, got %+v", suite)
	}
	if !reflect.DeepEqual(handled, []string{"no access"}) {
		t.Errorf("handled = %v", handled)
	}
}

func TestNonJSONResponse(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectGET("get_suite/1", testutil.MockResponse{
		StatusCode: 502,
		Body:       "<html>Bad Gateway</html>",
	})

	client := newTestClient(t, server, nil)
	_, err := client.GetSuite(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("expected non-JSON error, got %v", err)
	}
}

func TestGetCasesForSuite(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		server := testutil.NewMockServer()
		defer server.Close()

		server.ExpectGET("get_cases/7&suite_id=1723", testutil.MockResponse{
			Body: []Case{{ID: 100, Title: "C100 login"}, {ID: 101}},
		})

		client := newTestClient(t, server, nil)
		cases, err := client.GetCasesForSuite(context.Background(), 7, 1723)
		if err != nil {
			t.Fatalf("GetCasesForSuite failed: %v", err)
		}
		if len(cases) != 2 || cases[0].ID != 100 || cases[1].ID != 101 {
			t.Errorf("cases = %+v", cases)
		}
	})

	t.Run("paginated", func(t *testing.T) {
		server := testutil.NewMockServer()
		defer server.Close()

		server.ExpectGET("get_cases/7&suite_id=1723", testutil.MockResponse{
			Body: `{"offset":0,"limit":1,"size":1,"_links":{"next":"/api/v2/get_cases/7&suite_id=1723&offset=1"},"cases":[{"id":1}]}`,
		})
		server.ExpectGET("get_cases/7&suite_id=1723&offset=1", testutil.MockResponse{
			Body: `{"offset":1,"limit":1,"size":1,"_links":{"next":null},"cases":[{"id":2}]}`,
		})

		client := newTestClient(t, server, nil)
		cases, err := client.GetCasesForSuite(context.Background(), 7, 1723)
		if err != nil {
			t.Fatalf("GetCasesForSuite failed: %v", err)
		}
		if len(cases) != 2 || cases[0].ID != 1 || cases[1].ID != 2 {
			t.Errorf("cases = %+v", cases)
		}
		if server.RequestCount() != 2 {
			t.Errorf("expected 2 requests, got %d", server.RequestCount())
		}
	})
}

func TestAddRun(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectPOST("add_run/7", testutil.MockResponse{Body: Run{ID: 42, Name: "nightly"}})

	cfg := testConfig()
	cfg.AssignedToID = 3
	client := newTestClient(t, server, cfg)

	run, err := client.AddRun(context.Background(), "nightly", "summary", 1723, []int{100})
	if err != nil {
		t.Fatalf("AddRun failed: %v", err)
	}
	if run.ID != 42 {
		t.Errorf("run.ID = %d, want 42", run.ID)
	}

	var body map[string]interface{}
	if err := server.LastRequest().DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if body["suite_id"] != float64(1723) || body["name"] != "nightly" || body["description"] != "summary" {
		t.Errorf("body = %v", body)
	}
	if body["assignedto_id"] != float64(3) || body["include_all"] != false {
		t.Errorf("body = %v", body)
	}
	if ids, ok := body["case_ids"].([]interface{}); !ok || len(ids) != 1 || ids[0] != float64(100) {
		t.Errorf("case_ids = %v", body["case_ids"])
	}
}

func TestAddCasesToRun(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectGET("get_tests/5149", testutil.MockResponse{
		Body: []Test{{ID: 1, CaseID: 10}, {ID: 2, CaseID: 272273}, {ID: 3, CaseID: 11}},
	})
	server.ExpectPOST("update_run/5149", testutil.MockResponse{Body: Run{ID: 5149}})

	client := newTestClient(t, server, nil)
	merged, err := client.AddCasesToRun(context.Background(), 5149, []int{272273, 12})
	if err != nil {
		t.Fatalf("AddCasesToRun failed: %v", err)
	}

	want := []int{10, 272273, 11, 12}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("merged = %v, want %v", merged, want)
	}

	var body struct {
		CaseIDs []int `json:"case_ids"`
	}
	if err := server.LastRequest().DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if !reflect.DeepEqual(body.CaseIDs, want) {
		t.Errorf("update_run case_ids = %v, want %v", body.CaseIDs, want)
	}
}

func TestPlanOperations(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectPOST("add_plan/7", testutil.MockResponse{Body: Plan{ID: 77, Name: "plan"}})
	server.ExpectPOST("add_plan_entry/77", testutil.MockResponse{
		Body: `{"id":"abc-1","suite_id":1723,"runs":[{"id":501,"suite_id":1723}]}`,
	})
	server.ExpectPOST("update_plan_entry/77/abc-1", testutil.MockResponse{
		Body: `{"id":"abc-1","suite_id":1723,"runs":[{"id":501}]}`,
	})

	client := newTestClient(t, server, nil)
	ctx := context.Background()

	plan, err := client.AddPlan(ctx, "plan", "desc", nil)
	if err != nil || plan.ID != 77 {
		t.Fatalf("AddPlan = %+v, %v", plan, err)
	}

	entry, err := client.AddPlanEntry(ctx, 77, 1723, "Regression", "desc", []int{1, 2})
	if err != nil {
		t.Fatalf("AddPlanEntry failed: %v", err)
	}
	if entry.ID != "abc-1" || entry.FirstRunID() != 501 {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := client.UpdatePlanEntry(ctx, 77, "abc-1", []int{1, 2, 3}); err != nil {
		t.Fatalf("UpdatePlanEntry failed: %v", err)
	}

	var addPlanBody map[string]interface{}
	if err := server.RequestsFor("add_plan/7")[0].DecodeBody(&addPlanBody); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if entries, ok := addPlanBody["entries"].([]interface{}); !ok || len(entries) != 0 {
		t.Errorf("entries = %v, want []", addPlanBody["entries"])
	}
}

func TestAddResultsForCases(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectPOST("add_results_for_cases/42", testutil.MockResponse{
		Body: `[{"id":1,"test_id":9,"status_id":5}]`,
	})

	client := newTestClient(t, server, nil)
	ctx := context.Background()

	body, err := client.AddResultsForCases(ctx, 42, nil)
	if err != nil || body != nil {
		t.Errorf("empty push = %s, %v; want no-op", body, err)
	}
	if server.RequestCount() != 0 {
		t.Fatalf("empty push issued %d requests", server.RequestCount())
	}

	body, err = client.AddResultsForCases(ctx, 42, []CaseResult{{CaseID: 272273, StatusID: 5, Comment: "This test failed", Defects: "TR-8"}})
	if err != nil {
		t.Fatalf("AddResultsForCases failed: %v", err)
	}
	if !strings.Contains(string(body), `"test_id":9`) {
		t.Errorf("body = %s", body)
	}

	var sent struct {
		Results []CaseResult `json:"results"`
	}
	if err := server.LastRequest().DecodeBody(&sent); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if len(sent.Results) != 1 || sent.Results[0].CaseID != 272273 || sent.Results[0].Defects != "TR-8" {
		t.Errorf("results = %+v", sent.Results)
	}
}

func TestCaseOperations(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	server.ExpectPOST("add_case/3", testutil.MockResponse{Body: Case{ID: 900, Title: "C900"}})
	server.ExpectPOST("update_case/900", testutil.MockResponse{Body: Case{ID: 900, Title: "renamed"}})
	server.ExpectGET("get_case/900", testutil.MockResponse{Body: Case{ID: 900}})
	server.ExpectGET("get_run/5", testutil.MockResponse{Body: Run{ID: 5, SuiteID: 1723}})
	server.ExpectGET("get_sections/7&suite_id=1723", testutil.MockResponse{Body: `{"sections":[{"id":3,"name":"Login"}]}`})

	client := newTestClient(t, server, nil)
	ctx := context.Background()

	if _, err := client.AddCase(ctx, 3, "C900", "steps"); err != nil {
		t.Fatalf("AddCase failed: %v", err)
	}
	var addBody map[string]interface{}
	_ = server.LastRequest().DecodeBody(&addBody)
	if addBody["custom_automation_type"] != float64(3) {
		t.Errorf("custom_automation_type = %v", addBody["custom_automation_type"])
	}

	if tc, err := client.UpdateCase(ctx, 900, "renamed", "steps"); err != nil || tc.Title != "renamed" {
		t.Errorf("UpdateCase = %+v, %v", tc, err)
	}
	if tc, err := client.GetCase(ctx, 900); err != nil || tc.ID != 900 {
		t.Errorf("GetCase = %+v, %v", tc, err)
	}
	if run, err := client.GetRun(ctx, 5); err != nil || run.SuiteID != 1723 {
		t.Errorf("GetRun = %+v, %v", run, err)
	}
	sections, err := client.GetSections(ctx, 1723)
	if err != nil || len(sections) != 1 || sections[0].Name != "Login" {
		t.Errorf("GetSections = %+v, %v", sections, err)
	}
}
