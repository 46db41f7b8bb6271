package config

import "fmt"

// Error reports a required option missing from the configuration.
type Error struct {
	Field string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "missing testrail options in configuration"
	}
	return fmt.Sprintf("Missing %s value. Please update the testrail section of the configuration", e.Field)
}

// Validate checks that every option needed to talk to TestRail is set.
// The first missing field is reported.
func (c *Config) Validate() error {
	if c == nil {
		return &Error{}
	}
	return c.TestRail.Validate()
}

// Validate checks the required TestRail options.
func (c *TestRailConfig) Validate() error {
	if c == nil {
		return &Error{}
	}
	switch {
	case c.Domain == "":
		return &Error{Field: "domain"}
	case c.Username == "":
		return &Error{Field: "username"}
	case c.Password == "":
		return &Error{Field: "password"}
	case c.ProjectID == 0:
		return &Error{Field: "project_id"}
	case !c.SuiteID.IsSet():
		return &Error{Field: "suite_id"}
	}
	return nil
}
