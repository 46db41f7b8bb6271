package testrail

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// HTTPClient abstracts HTTP operations for testing.
// This interface is satisfied by *http.Client and can be mocked in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns the HTTP client used in production. It has no
// timeout: a hung TestRail call blocks until the caller's context ends.
func DefaultHTTPClient() HTTPClient {
	return &http.Client{}
}

// ErrorHandler receives errors reported by TestRail. When one is set the
// failing call returns a zero result instead of an error.
type ErrorHandler func(err *RemoteError)

// clientOptions holds optional dependencies for the client.
type clientOptions struct {
	httpClient HTTPClient
	baseURL    string
	onError    ErrorHandler
	log        logrus.FieldLogger
}

// Option configures optional client dependencies.
type Option func(*clientOptions)

// WithHTTPClient sets a custom HTTP client.
// Use this in tests to inject a mock HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithBaseURL replaces https://{domain}/index.php, e.g. with an httptest
// server URL.
func WithBaseURL(base string) Option {
	return func(o *clientOptions) {
		o.baseURL = base
	}
}

// WithErrorHandler installs a handler for errors reported by TestRail.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *clientOptions) {
		o.onError = fn
	}
}

// WithLogger sets the logger used for request tracing and error reports.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *clientOptions) {
		o.log = log
	}
}

func applyOptions(opts []Option) *clientOptions {
	options := &clientOptions{
		httpClient: DefaultHTTPClient(),
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
