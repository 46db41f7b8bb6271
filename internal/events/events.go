// Package events defines the test runner lifecycle events and a synchronous
// bus that delivers them.
package events

import (
	"fmt"
	"time"
)

// Lifecycle event names.
const (
	RunnerStart = "runner:start"
	SuiteStart  = "suite:start"
	TestStart   = "test:start"
	TestPending = "test:pending"
	TestPass    = "test:pass"
	TestFail    = "test:fail"
	End         = "end"
)

// Capabilities identifies the runner (browser, platform) a test ran on.
type Capabilities struct {
	BrowserName string `json:"browserName"`
	Platform    string `json:"platform,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Runner is the payload of runner:start.
type Runner struct {
	Capabilities Capabilities
}

// Suite is the payload of suite:start.
type Suite struct {
	Title  string
	Tags   []string
	Runner Capabilities
}

// TestError describes a failure.
type TestError struct {
	Message string
	Stack   string
}

// Test is the payload of test:start, test:pending, test:pass and test:fail.
type Test struct {
	Title   string
	Tags    []string
	Runner  Capabilities
	Err     *TestError
	Elapsed time.Duration
}

// EndOfRun is the payload of end.
type EndOfRun struct {
	Capabilities []Capabilities
}

// Handler receives one event payload.
type Handler func(payload interface{}) error

// Source is something handlers can be registered on.
type Source interface {
	On(name string, fn Handler)
}

// Bus dispatches events to handlers synchronously, in registration order.
// It is not safe for concurrent use; events are delivered one at a time.
type Bus struct {
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// On registers fn for the named event.
func (b *Bus) On(name string, fn Handler) {
	b.handlers[name] = append(b.handlers[name], fn)
}

// Emit runs every handler of the named event to completion. The first
// handler error stops dispatch and is returned.
func (b *Bus) Emit(name string, payload interface{}) error {
	for _, fn := range b.handlers[name] {
		if err := fn(payload); err != nil {
			return fmt.Errorf("%s handler: %w", name, err)
		}
	}
	return nil
}

// HasHandlers reports whether anything listens for the named event.
func (b *Bus) HasHandlers(name string) bool {
	return len(b.handlers[name]) > 0
}
