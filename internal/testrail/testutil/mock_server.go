// Package testutil provides a fake TestRail server for client and
// reporter tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockResponse defines a response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       interface{} // Will be JSON encoded if not a string
	Headers    map[string]string
}

// RecordedRequest captures details about a request made to the mock server.
type RecordedRequest struct {
	Method string
	// Operation is the API path after /api/v2/, e.g. "get_plan/5".
	Operation string
	Headers   http.Header
	Body      []byte
}

// DecodeBody unmarshals the recorded JSON body into v.
func (r RecordedRequest) DecodeBody(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// MockServer is an httptest server speaking TestRail's
// index.php?/api/v2/<operation> URL scheme. It records every request and
// answers with the responses configured per method and operation.
type MockServer struct {
	*httptest.Server
	mu        sync.Mutex
	responses map[string]map[string]MockResponse // method -> operation -> response
	Requests  []RecordedRequest
}

// NewMockServer creates a new mock TestRail server.
func NewMockServer() *MockServer {
	m := &MockServer{
		responses: make(map[string]map[string]MockResponse),
		Requests:  make([]RecordedRequest, 0),
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))

	return m
}

// BaseURL returns the index.php URL to hand to the client.
func (m *MockServer) BaseURL() string {
	return m.URL + "/index.php"
}

// ExpectRequest configures a response for a method and operation.
func (m *MockServer) ExpectRequest(method, operation string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.responses[method] == nil {
		m.responses[method] = make(map[string]MockResponse)
	}
	m.responses[method][operation] = resp
}

// ExpectGET is a convenience method for GET requests.
func (m *MockServer) ExpectGET(operation string, resp MockResponse) {
	m.ExpectRequest(http.MethodGet, operation, resp)
}

// ExpectPOST is a convenience method for POST requests.
func (m *MockServer) ExpectPOST(operation string, resp MockResponse) {
	m.ExpectRequest(http.MethodPost, operation, resp)
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	op := strings.TrimPrefix(r.URL.RawQuery, "/api/v2/")

	m.Requests = append(m.Requests, RecordedRequest{
		Method:    r.Method,
		Operation: op,
		Headers:   r.Header.Clone(),
		Body:      body,
	})

	if methodResponses, ok := m.responses[r.Method]; ok {
		if resp, ok := methodResponses[op]; ok {
			m.writeResponse(w, resp)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"no mock response configured"}`))
}

func (m *MockServer) writeResponse(w http.ResponseWriter, resp MockResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)

	if resp.Body != nil {
		switch body := resp.Body.(type) {
		case string:
			_, _ = w.Write([]byte(body))
		case []byte:
			_, _ = w.Write(body)
		default:
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

// RequestCount returns the number of requests received.
func (m *MockServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Operations returns "METHOD operation" for every request, in order.
func (m *MockServer) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]string, 0, len(m.Requests))
	for _, req := range m.Requests {
		ops = append(ops, req.Method+" "+req.Operation)
	}
	return ops
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockServer) LastRequest() *RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Requests) == 0 {
		return nil
	}
	return &m.Requests[len(m.Requests)-1]
}

// RequestsFor returns all requests to an operation.
func (m *MockServer) RequestsFor(operation string) []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []RecordedRequest
	for _, req := range m.Requests {
		if req.Operation == operation {
			result = append(result, req)
		}
	}
	return result
}

// Reset clears all recorded requests and configured responses.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = make([]RecordedRequest, 0)
	m.responses = make(map[string]map[string]MockResponse)
}
