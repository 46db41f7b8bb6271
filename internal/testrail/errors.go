package testrail

import "fmt"

// RemoteError is returned when a TestRail response carries an "error" field.
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("testrail %s: %s", e.Operation, e.Message)
}
