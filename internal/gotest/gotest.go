// Package gotest turns a `go test -json` stream into test runner
// lifecycle events.
package gotest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/events"
)

// TestEvent is one line of `go test -json` output, see `go doc test2json`.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// TagPrefix marks an output line carrying case tags, as written by
// pkg/testrail.Case.
const TagPrefix = "testrail:"

var (
	tagLine       = regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(TagPrefix) + `\s*(.+)$`)
	assertionLine = regexp.MustCompile(`^\S+\.go:\d+:`)
)

// DefaultCapabilities describes the local Go toolchain as the runner.
func DefaultCapabilities(browserName string) events.Capabilities {
	if browserName == "" {
		browserName = "go"
	}
	return events.Capabilities{
		BrowserName: browserName,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Version:     runtime.Version(),
	}
}

// Source emits lifecycle events for the tests of a `go test -json` stream.
type Source struct {
	bus  *events.Bus
	caps events.Capabilities
	log  logrus.FieldLogger
	echo io.Writer

	started bool
	ended   bool
	suite   string
	output  map[string][]string
	tags    map[string][]string
}

// Option configures a Source.
type Option func(*Source)

// WithEcho copies every input line to w.
func WithEcho(w io.Writer) Option {
	return func(s *Source) {
		s.echo = w
	}
}

// WithLogger sets the logger for skipped lines.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Source) {
		s.log = log
	}
}

// NewSource creates a source emitting on bus with the given runner
// capabilities.
func NewSource(bus *events.Bus, caps events.Capabilities, opts ...Option) *Source {
	s := &Source{
		bus:    bus,
		caps:   caps,
		log:    logrus.StandardLogger(),
		output: make(map[string][]string),
		tags:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consume reads the whole stream, then emits the end event. Lines that
// are not test2json events, such as build errors, are skipped.
func (s *Source) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if s.echo != nil {
			if _, err := fmt.Fprintf(s.echo, "%s\n", line); err != nil {
				return fmt.Errorf("failed to echo test output: %w", err)
			}
		}

		var ev TestEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.Action == "" {
			s.log.WithField("line", string(line)).Debug("skipping non-test2json line")
			continue
		}
		if err := s.Handle(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read test output: %w", err)
	}

	return s.Finish()
}

// Handle translates one test2json event.
func (s *Source) Handle(ev TestEvent) error {
	if ev.Test == "" {
		return nil
	}
	key := ev.Package + "\x00" + ev.Test

	switch ev.Action {
	case "run":
		if err := s.begin(ev); err != nil {
			return err
		}
		return s.bus.Emit(events.TestStart, s.test(ev, key, nil))
	case "output":
		s.collect(key, ev.Output)
		return nil
	case "pass":
		return s.finish(ev, key, events.TestPass, nil)
	case "skip":
		return s.finish(ev, key, events.TestPending, nil)
	case "fail":
		return s.finish(ev, key, events.TestFail, s.failure(key))
	default:
		// pause, cont, bench and start carry nothing to report.
		return nil
	}
}

// Finish emits the end event once.
func (s *Source) Finish() error {
	if s.ended {
		return nil
	}
	s.ended = true
	return s.bus.Emit(events.End, events.EndOfRun{Capabilities: []events.Capabilities{s.caps}})
}

// begin emits runner:start for the first test and suite:start whenever
// the top-level test changes.
func (s *Source) begin(ev TestEvent) error {
	if !s.started {
		s.started = true
		if err := s.bus.Emit(events.RunnerStart, events.Runner{Capabilities: s.caps}); err != nil {
			return err
		}
	}

	top := ev.Test
	if i := strings.IndexByte(top, '/'); i >= 0 {
		top = top[:i]
	}
	suite := ev.Package + "\x00" + top
	if suite == s.suite {
		return nil
	}
	s.suite = suite
	return s.bus.Emit(events.SuiteStart, events.Suite{Title: Title(top), Runner: s.caps})
}

func (s *Source) finish(ev TestEvent, key, name string, testErr *events.TestError) error {
	if err := s.begin(ev); err != nil {
		return err
	}
	payload := s.test(ev, key, testErr)
	delete(s.output, key)
	delete(s.tags, key)
	return s.bus.Emit(name, payload)
}

func (s *Source) test(ev TestEvent, key string, testErr *events.TestError) events.Test {
	return events.Test{
		Title:   Title(ev.Test),
		Tags:    append([]string(nil), s.tags[key]...),
		Runner:  s.caps,
		Err:     testErr,
		Elapsed: time.Duration(ev.Elapsed * float64(time.Second)),
	}
}

// collect keeps assertion output and picks up tag lines.
func (s *Source) collect(key, output string) {
	line := strings.TrimRight(output, "\n")
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		return
	case strings.HasPrefix(trimmed, "=== "), strings.HasPrefix(trimmed, "--- "):
		return
	}

	if ids, ok := tags(trimmed); ok {
		s.tags[key] = append(s.tags[key], ids...)
		return
	}
	s.output[key] = append(s.output[key], trimmed)
}

// tags returns the ids of a tag line. A line is only a tag line when every
// word after the prefix is a case id, so messages such as
// "testrail: C5 upload rejected" stay in the output.
func tags(line string) ([]string, bool) {
	m := tagLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	ids := strings.Fields(m[1])
	if len(ids) == 0 {
		return nil, false
	}
	for _, id := range ids {
		if !caseid.Valid(id) {
			return nil, false
		}
	}
	return ids, true
}

// failure builds the error of a failed test from its output: the first
// file:line assertion is the message, the whole output the stack.
func (s *Source) failure(key string) *events.TestError {
	lines := s.output[key]
	if len(lines) == 0 {
		return &events.TestError{Message: "test failed"}
	}

	msg := lines[0]
	for _, l := range lines {
		if assertionLine.MatchString(l) {
			msg = l
			break
		}
	}
	return &events.TestError{Message: msg, Stack: strings.Join(lines, "\n")}
}

// Title makes a Go test name readable for case id matching: subtests are
// separated by " / " and underscores become spaces, so t.Run("C12 admin")
// reported as "TestLogin/C12_admin" yields "TestLogin / C12 admin".
func Title(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "_", " ")
	}
	return strings.Join(parts, " / ")
}
