package reporter

import (
	"fmt"
	"strings"
)

// Status is a TestRail result status id.
type Status int

const (
	StatusPassed   Status = 1
	StatusBlocked  Status = 2
	StatusUntested Status = 3
	StatusRetest   Status = 4
	StatusFailed   Status = 5
)

// AllStatuses returns the built-in statuses in id order.
func AllStatuses() []Status {
	return []Status{StatusPassed, StatusBlocked, StatusUntested, StatusRetest, StatusFailed}
}

// ParseStatus parses a status name, case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passed":
		return StatusPassed, nil
	case "blocked":
		return StatusBlocked, nil
	case "untested":
		return StatusUntested, nil
	case "retest":
		return StatusRetest, nil
	case "failed":
		return StatusFailed, nil
	default:
		return 0, fmt.Errorf("invalid status: %q", s)
	}
}

// String returns the lower-case status name, or the number for custom
// statuses.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusBlocked:
		return "blocked"
	case StatusUntested:
		return "untested"
	case StatusRetest:
		return "retest"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// Outcome is what a runner reported for a test.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// defaultStatus maps outcomes to status ids when the configuration does
// not override them. TestRail rejects Untested for new results, so pending
// tests are reported as Retest.
var defaultStatus = map[Outcome]Status{
	OutcomePassed:  StatusPassed,
	OutcomeFailed:  StatusFailed,
	OutcomePending: StatusRetest,
}
