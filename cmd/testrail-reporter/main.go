// Package main provides the entry point for the TestRail reporter CLI.
package main

import (
	"errors"
	"os"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/cmd"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		// An exit status passed through from the test command was already
		// reported by that command.
		if exitErr.Message != "" {
			os.Stderr.WriteString("Error: " + exitErr.Message + "\n")
		}
		os.Exit(exitErr.Code)
	}

	os.Stderr.WriteString("Error: " + err.Error() + "\n")
	os.Exit(1)
}
